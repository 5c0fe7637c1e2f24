package lunch

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/seed"
	"github.com/google/uuid"
)

// ApplyDemoSeeds applies the standard bootstrap seeds, then publishes a
// sample menu for today against the seeded tables so the service can take
// orders straight away.
func ApplyDemoSeeds(ctx context.Context, repos Repos, seedFS embed.FS, logger apt.Logger) error {
	if err := ApplySeeds(ctx, repos, seedFS, logger); err != nil {
		return fmt.Errorf("apply standard seeds: %w", err)
	}

	tracker, err := trackerFromRepo(repos.MenuRepo)
	if err != nil {
		return err
	}

	demoSeeds := []seed.Seed{
		{
			ID:          fmt.Sprintf("demo_menu_%s", time.Now().Format("2006_01_02")),
			Description: "Publish a demo menu for today",
			Run: func(ctx context.Context) error {
				return publishDemoMenu(ctx, repos, logger)
			},
		},
	}

	logger.Info("Applying demo menu seed")
	if err := seed.Apply(ctx, tracker, demoSeeds, seedApplication); err != nil {
		return err
	}
	logger.Info("Demo menu seed applied successfully")
	return nil
}

func publishDemoMenu(ctx context.Context, repos Repos, logger apt.Logger) error {
	now := time.Now()

	existing, err := repos.MenuRepo.GetByDay(ctx, now)
	if err != nil {
		return fmt.Errorf("check today's menu: %w", err)
	}
	if existing != nil {
		logger.Info("Demo menu already published", "menu_id", existing.ID.String())
		return nil
	}

	tables, err := repos.TableRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	if len(tables) == 0 {
		logger.Info("No tables available, skipping demo menu")
		return nil
	}

	tableIDs := make([]uuid.UUID, 0, len(tables))
	for _, t := range tables {
		if t.Available() {
			tableIDs = append(tableIDs, t.ID)
		}
	}
	if len(tableIDs) == 0 {
		logger.Info("No available tables, skipping demo menu")
		return nil
	}

	root, err := repos.UserRepo.GetByUsername(ctx, "root")
	if err != nil {
		return fmt.Errorf("resolve seed owner: %w", err)
	}
	if root == nil {
		return errors.New("root user not seeded")
	}

	day := TruncateDay(now)
	menu := NewDailyMenu()
	menu.Owner = root.ID
	menu.Label = "Menu del giorno"
	menu.Day = day
	menu.Deadline = day.Add(11*time.Hour + 30*time.Minute)
	menu.Tables = tableIDs
	menu.FirstCourse = FirstCourse{
		Items: []CourseItem{
			{Value: "spaghetti", Condiments: []string{"pomodoro", "carbonara"}},
			{Value: "risotto", Condiments: []string{"funghi"}},
			{Value: "minestrone"},
		},
	}
	menu.SecondCourse = SecondCourse{
		Items:      []string{"pollo arrosto", "frittata"},
		SideDishes: []string{"insalata", "patate al forno", "zucchine"},
	}

	if _, errs := NewMenuIndex(menu); len(errs) > 0 {
		return fmt.Errorf("demo menu is not well formed: %v", errs[0])
	}

	menu.BeforeCreate()
	if err := repos.MenuRepo.Create(ctx, menu); err != nil {
		return fmt.Errorf("create demo menu: %w", err)
	}

	logger.Info("Demo menu published", "menu_id", menu.ID.String(), "day", day.Format("2006-01-02"))
	return nil
}

// DemoSeedingFunc returns a lifecycle OnStart-compatible function which
// applies the demo seeds in the background.
func DemoSeedingFunc(seedCtx context.Context, repos Repos, seedFS embed.FS, logger apt.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return func(ctx context.Context) error {
		logger.Info("Starting demo seeding in background")
		go func() {
			if err := ApplyDemoSeeds(seedCtx, repos, seedFS, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("❌ Demo seeds failed: %v", err)
			} else if err == nil {
				logger.Info("✓ Demo seeding completed successfully")
			}
		}()
		return nil
	}
}
