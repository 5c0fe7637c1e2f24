package main

import (
	"context"
	"embed"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/middleware"

	"github.com/mensaclub/mensa/internal/lunch"
	"github.com/mensaclub/mensa/internal/mongo"
	"github.com/mensaclub/mensa/pkg"
)

//go:embed seed.json
var seedFS embed.FS

const (
	appNamespace = "MENSA"
	appName      = "mensa"
	appVersion   = "0.1.0"
)

func main() {
	config, err := apt.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup with error: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	seedCtx, cancelSeeds := context.WithCancel(ctx)
	defer cancelSeeds()

	lifecycle := []interface{}{}

	menuRepo := mongo.NewMenuRepo(config, logger)
	if err := menuRepo.Start(ctx); err != nil {
		log.Fatalf("%s(%s) cannot start menu repository: %v", appName, appVersion, err)
	}

	db := menuRepo.GetDatabase()
	if db == nil {
		err := errors.New("cannot get menu repo database")
		log.Fatalf("%s(%s) cannot initialize database: %v", appName, appVersion, err)
	}

	orderRepo := mongo.NewOrderRepo(db)
	tableRepo := mongo.NewTableRepo(db)
	userRepo := mongo.NewUserRepo(db)

	if err := orderRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("%s(%s) cannot create order indexes: %v", appName, appVersion, err)
	}
	if err := tableRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("%s(%s) cannot create table indexes: %v", appName, appVersion, err)
	}
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("%s(%s) cannot create user indexes: %v", appName, appVersion, err)
	}

	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")

	publisher, err := pkg.NewNATSPublisher(natsURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS publisher: %v", appName, appVersion, err)
	}

	publisherLifecycle := apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	}
	lifecycle = append(lifecycle, publisherLifecycle)

	subscriber, err := pkg.NewNATSSubscriber(natsURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS subscriber: %v", appName, appVersion, err)
	}

	notifier := lunch.NewInvalidationNotifier(subscriber, userRepo, logger)
	notifierLifecycle := apt.LifecycleHooks{
		OnStart: notifier.Start,
		OnStop: func(context.Context) error {
			return subscriber.Close()
		},
	}
	lifecycle = append(lifecycle, notifierLifecycle)

	repos := lunch.Repos{
		MenuRepo:  menuRepo,
		OrderRepo: orderRepo,
		TableRepo: tableRepo,
		UserRepo:  userRepo,
	}

	hd := lunch.HandlerDeps{
		Repos:     repos,
		Publisher: publisher,
	}

	handler := lunch.NewHandler(
		hd,
		config,
		logger,
	)

	demoEnabled, _ := config.GetString("seeding.demo")
	var seedingFunc func(ctx context.Context) error
	if demoEnabled == "true" {
		logger.Info("Demo seeding enabled")
		seedingFunc = lunch.DemoSeedingFunc(seedCtx, repos, seedFS, logger)
	} else {
		seedingFunc = lunch.SeedingFunc(seedCtx, repos, seedFS, logger)
	}

	seedHooks := apt.LifecycleHooks{
		OnStart: seedingFunc,
		OnStop:  lunch.StopFunc(cancelSeeds),
	}
	lifecycle = append(lifecycle, seedHooks)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: true, // Internal API service
	})
	stack = append(stack, middleware.InternalOnly())

	options := []apt.Option{
		apt.WithConfig(config),
		apt.WithLogger(logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler),
		apt.WithLifecycle(lifecycle...),
		apt.WithHealthChecks(appName),
	}

	ms := apt.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	if err := ms.Run(ctx); err != nil {
		_ = menuRepo.Stop(context.Background())
		log.Fatalf("%s(%s) stopped with error: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}
