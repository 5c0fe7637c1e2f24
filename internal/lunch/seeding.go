package lunch

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/seed"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mensaclub/mensa/internal/access"
)

const seedApplication = "lunch"

type bootstrapSeedDocument struct {
	Tables []tableSeed `json:"tables"`
	Users  []userSeed  `json:"users"`
}

type tableSeed struct {
	Name  string `json:"name"`
	Seats int    `json:"seats"`
}

type userSeed struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func loadSeeds(seedFS embed.FS) (*bootstrapSeedDocument, error) {
	seedBytes, err := seedFS.ReadFile("seed.json")
	if err != nil {
		return nil, fmt.Errorf("read seed.json: %w", err)
	}

	if len(seedBytes) == 0 {
		return nil, errors.New("seed file is empty")
	}

	var doc bootstrapSeedDocument
	if err := json.Unmarshal(seedBytes, &doc); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	return &doc, nil
}

// ApplySeeds ensures the bootstrap tables and users exist.
func ApplySeeds(ctx context.Context, repos Repos, seedFS embed.FS, logger apt.Logger) error {
	if repos.TableRepo == nil || repos.UserRepo == nil {
		return errors.New("table and user repositories are required")
	}

	doc, err := loadSeeds(seedFS)
	if err != nil {
		return err
	}

	defs := buildSeedDefinitions(doc, repos, logger)
	if len(defs) == 0 {
		logger.Info("No seeds to apply")
		return nil
	}

	tracker, err := trackerFromRepo(repos.MenuRepo)
	if err != nil {
		return err
	}

	logger.Info("Applying seeds")
	if err := seed.Apply(ctx, tracker, defs, seedApplication); err != nil {
		return err
	}
	logger.Info("Seeds applied successfully")
	return nil
}

func trackerFromRepo(repo MenuRepo) (seed.Tracker, error) {
	provider, ok := repo.(mongoDatabaseProvider)
	if !ok {
		return nil, errors.New("menu repository does not expose MongoDB access for seeding")
	}
	db := provider.GetDatabase()
	if db == nil {
		return nil, errors.New("menu repository database is not initialized")
	}
	return seed.NewMongoTracker(db), nil
}

type mongoDatabaseProvider interface {
	GetDatabase() *mongo.Database
}

func buildSeedDefinitions(doc *bootstrapSeedDocument, repos Repos, logger apt.Logger) []seed.Seed {
	var defs []seed.Seed

	for _, s := range doc.Tables {
		seedData := s
		if strings.TrimSpace(seedData.Name) == "" {
			logger.Info("Skipping seed table with empty name")
			continue
		}

		defs = append(defs, seed.Seed{
			ID:          fmt.Sprintf("2026-02-09_table_%s", seedIdentifier(seedData.Name)),
			Description: fmt.Sprintf("Ensure table %s exists", seedData.Name),
			Run: func(ctx context.Context) error {
				return seedData.ensureTable(ctx, repos.TableRepo, logger)
			},
		})
	}

	for _, s := range doc.Users {
		seedData := s
		if strings.TrimSpace(seedData.Username) == "" {
			logger.Info("Skipping seed user with empty username")
			continue
		}

		defs = append(defs, seed.Seed{
			ID:          fmt.Sprintf("2026-02-09_user_%s", seedIdentifier(seedData.Username)),
			Description: fmt.Sprintf("Ensure user %s exists", seedData.Username),
			Run: func(ctx context.Context) error {
				return seedData.ensureUser(ctx, repos.UserRepo, logger)
			},
		})
	}

	return defs
}

func seedIdentifier(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}

	replacer := strings.NewReplacer("-", "_", " ", "_", "/", "_", "\\", "_")
	value = replacer.Replace(value)

	var builder strings.Builder
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			builder.WriteRune(r)
		}
	}

	result := builder.String()
	if result == "" {
		return "seed"
	}
	return result
}

func (s tableSeed) ensureTable(ctx context.Context, repo TableRepo, logger apt.Logger) error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return errors.New("table name is required")
	}

	existing, err := repo.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("check seed table %s: %w", name, err)
	}
	if existing != nil {
		logger.Info("Seed table already exists", "name", name)
		return nil
	}

	table := NewTable()
	table.Name = name
	if s.Seats > 0 {
		table.Seats = s.Seats
	}
	table.BeforeCreate()

	if err := repo.Create(ctx, table); err != nil {
		return fmt.Errorf("create seed table %s: %w", name, err)
	}

	logger.Info("Seed table created", "name", name, "id", table.ID.String())
	return nil
}

func (s userSeed) ensureUser(ctx context.Context, repo UserRepo, logger apt.Logger) error {
	username := strings.TrimSpace(strings.ToLower(s.Username))
	if username == "" {
		return errors.New("username is required")
	}

	existing, err := repo.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("check seed user %s: %w", username, err)
	}
	if existing != nil {
		logger.Info("Seed user already exists", "username", username)
		return nil
	}

	role := access.RoleUser
	if s.Role != "" {
		parsed, ok := access.ParseRole(s.Role)
		if !ok {
			return fmt.Errorf("seed user %s has unknown role %q", username, s.Role)
		}
		role = parsed
	}

	user := NewUser()
	user.Username = username
	user.Name = s.Name
	user.Email = s.Email
	user.Role = role
	user.BeforeCreate()

	if err := repo.Create(ctx, user); err != nil {
		return fmt.Errorf("create seed user %s: %w", username, err)
	}

	logger.Info("Seed user created", "username", username, "id", user.ID.String())
	return nil
}

// SeedingFunc returns a lifecycle OnStart-compatible function which applies
// the bootstrap seeds in the background.
func SeedingFunc(seedCtx context.Context, repos Repos, seedFS embed.FS, logger apt.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return func(ctx context.Context) error {
		logger.Info("Starting seeding in background")
		go func() {
			if err := ApplySeeds(seedCtx, repos, seedFS, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("❌ Seeds failed: %v", err)
			} else if err == nil {
				logger.Info("✓ Seeding completed successfully")
			}
		}()
		return nil
	}
}

// StopFunc returns a lifecycle OnStop-compatible function which cancels any
// background seeding goroutine.
func StopFunc(cancelFunc context.CancelFunc) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if cancelFunc != nil {
			cancelFunc()
		}
		return nil
	}
}
