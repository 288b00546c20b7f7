package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"activity-sync/internal/config"
	"activity-sync/internal/db"
	"activity-sync/internal/health"
	"activity-sync/internal/memstore"
	"activity-sync/internal/notify"
	"activity-sync/internal/rabbitmq"
	"activity-sync/internal/repositories"
	"activity-sync/internal/sweeps"
	"activity-sync/internal/telemetry"
	"activity-sync/internal/triggers"
)

// App holds every wired component of one process.
type App struct {
	Cfg            config.Config
	Log            *zap.Logger
	Activities     repositories.ActivityRepository
	Profiles       repositories.ProfileRepository
	FriendRequests repositories.FriendRequestRepository
	Tree           repositories.ChatTreeRepository
	Publisher      rabbitmq.Publisher
	Emitter        *telemetry.InvocationEmitter
	Router         *triggers.Router
	Archiver       *sweeps.Archiver
	Cleaner        *sweeps.Cleaner
	Checker        *health.Checker

	closers []func() error
}

// NewApp connects the configured stores and wires the handlers.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	log, err := telemetry.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	app := &App{Cfg: cfg, Log: log, Checker: health.NewChecker(2 * time.Second)}

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracing(sctx)
	})

	if err := app.openDocStore(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := app.openChatStore(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Publisher = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.EventsExchange, log)
	app.closers = append(app.closers, app.Publisher.Close)
	log.Info("publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(app.Publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(app.Publisher)))

	var sender notify.Sender = notify.NewLogSender(log)
	if rabbitmq.PublisherMode(app.Publisher) == "amqp" {
		sender = rabbitmq.NewPushSender(app.Publisher, cfg.PushRoutingKey)
	}

	app.Emitter = telemetry.NewInvocationEmitter(app.Publisher, cfg.InvocationRoutingKey, cfg.ServiceName, cfg.Environment, log)
	handlers := triggers.NewHandlers(triggers.Deps{
		Activities: app.Activities,
		Profiles:   app.Profiles,
		Tree:       app.Tree,
		Sender:     sender,
		Log:        log,
	})
	app.Router = triggers.NewRouter(handlers, cfg.HandlerTimeout, app.Emitter, log)
	app.Archiver = sweeps.NewArchiver(app.Activities, log, nil)
	app.Cleaner = sweeps.NewCleaner(app.Activities, app.Tree, cfg.ChatRetention, log, nil)
	return app, nil
}

func (a *App) openDocStore(ctx context.Context) error {
	switch a.Cfg.DocStoreDriver {
	case config.DriverPostgres:
		database, err := db.Connect(a.Cfg.DatabaseDSN, a.Log)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, database.Close)
		a.Checker.Add("postgres", database.PingContext)
		a.Activities = repositories.NewActivityRepo(database)
		a.Profiles = repositories.NewProfileRepo(database)
		a.FriendRequests = repositories.NewFriendRequestRepo(database)
	case config.DriverMongo:
		client, database, err := db.ConnectMongo(ctx, a.Cfg.MongoURI, a.Cfg.MongoDatabase)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
		a.Checker.Add("mongo", func(ctx context.Context) error { return client.Ping(ctx, nil) })
		activities := repositories.NewMongoActivityRepo(database)
		if err := activities.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure mongo indexes: %w", err)
		}
		a.Activities = activities
		a.Profiles = repositories.NewMongoProfileRepo(database)
		a.FriendRequests = repositories.NewMongoFriendRequestRepo(database)
	case config.DriverMemory:
		docs := memstore.NewDocs()
		a.Activities, a.Profiles, a.FriendRequests = docs, docs, docs
		a.Log.Warn("using in-memory document store")
	default:
		return fmt.Errorf("unsupported document store %q", a.Cfg.DocStoreDriver)
	}
	return nil
}

func (a *App) openChatStore(ctx context.Context) error {
	switch a.Cfg.ChatStoreDriver {
	case config.DriverRedis:
		rdb, err := db.ConnectRedis(ctx, a.Cfg.RedisAddr, a.Cfg.RedisPassword, a.Cfg.RedisDB)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, rdb.Close)
		a.Checker.Add("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		a.Tree = repositories.NewChatTreeRepo(rdb)
	case config.DriverMemory:
		a.Tree = memstore.NewChatTree()
		a.Log.Warn("using in-memory chat store")
	default:
		return fmt.Errorf("unsupported chat store %q", a.Cfg.ChatStoreDriver)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.Log.Sync()
	return errors.Join(errs...)
}
