package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"neodymium/bot"
	"neodymium/config"
	"neodymium/database"
	"neodymium/events"
	"neodymium/infrastructure"
	"neodymium/metrics"
	"neodymium/repository"
	"neodymium/service"
)

// Run initializes and starts the application
func Run(ctx context.Context, cfg *config.Config) error {
	log.Info("Starting neodymium bot...")

	// Initialize storage
	repo, closeRepo, err := NewRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	// Initialize event bus and metrics
	eventBus := events.NewBus()
	subscribeAuditLog(eventBus)

	recorder := metrics.NewRecorder()
	recorder.Subscribe(eventBus)

	if cfg.NATSURL != "" {
		natsClient, err := connectEventStream(ctx, cfg.NATSURL)
		if err != nil {
			return err
		}
		defer natsClient.Close()
		infrastructure.NewEventForwarder(natsClient).Subscribe(eventBus)
	}

	var metricsServer *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr, recorder)
		metricsServer.Start()
	}

	// Load persisted guild configuration
	store := service.NewGuildConfigStore(repo, eventBus)
	if err := store.Load(ctx); err != nil {
		return err
	}

	// Initialize Discord bot
	log.Info("Initializing Discord bot...")
	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}

	platform := bot.NewPlatform(session)
	reactionService := service.NewReactionService(store, platform, eventBus, recorder)
	commandService := service.NewCommandService(store, cfg.CommandPrefix, recorder)
	welcomeService := service.NewWelcomeService(platform)

	discordBot := bot.New(session, store, reactionService, commandService, welcomeService)
	if err := discordBot.Start(); err != nil {
		return fmt.Errorf("failed to start Discord bot: %w", err)
	}

	// Wait for context cancellation
	log.Infof("Bot is running in %s mode with %s storage", cfg.Environment, cfg.StorageBackend)
	<-ctx.Done()

	log.Info("Shutting down bot...")

	if err := discordBot.Close(); err != nil {
		log.Errorf("Error closing Discord bot: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Error stopping metrics server: %v", err)
		}
	}

	log.Info("Shutdown completed")
	return nil
}

// NewRepository opens the configured storage backend. The returned func
// releases any resources it holds.
func NewRepository(ctx context.Context, cfg *config.Config) (service.GuildConfigRepository, func(), error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		databaseURL := cfg.GetDatabaseURL()

		log.Info("Running database migrations...")
		if err := database.MigrateUp(databaseURL); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		log.Info("Connecting to database...")
		db, err := database.NewConnection(ctx, databaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("Database connection established successfully")

		return repository.NewPostgresRepository(db), db.Close, nil

	case config.StorageFile:
		repo, err := repository.NewFileRepository(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("Using file storage in %s", cfg.DataDir)
		return repo, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// connectEventStream connects to NATS and makes sure the audit stream exists
func connectEventStream(ctx context.Context, url string) (*infrastructure.NATSClient, error) {
	log.Info("Connecting to NATS...")
	client := infrastructure.NewNATSClient(url)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	if err := client.EnsureStream(infrastructure.StreamName, infrastructure.Subjects()); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// subscribeAuditLog logs every role change applied by the bot
func subscribeAuditLog(bus *events.Bus) {
	bus.Subscribe(events.EventTypeRoleChanged, func(ctx context.Context, event events.Event) {
		e, ok := event.(events.RoleChangedEvent)
		if !ok {
			return
		}
		log.WithFields(log.Fields{
			"guildID":  e.GuildID,
			"memberID": e.MemberID,
			"roleID":   e.RoleID,
			"change":   e.Change,
			"source":   e.Source,
		}).Info("Audit: member role changed")
	})
}
