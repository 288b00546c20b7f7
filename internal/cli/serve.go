package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"activity-sync/internal/config"
	"activity-sync/internal/handlers"
	"activity-sync/internal/health"
	"activity-sync/internal/rabbitmq"
	"activity-sync/internal/workers"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume change events, run the daily sweeps and serve the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg := opts.Config
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	log := app.Log

	consumer, err := newConsumer(cfg, app)
	if err != nil {
		return err
	}
	if consumer != nil {
		defer consumer.Close()
	}

	loc, err := time.LoadLocation(cfg.ScheduleTZ)
	if err != nil {
		return fmt.Errorf("load schedule timezone: %w", err)
	}
	scheduler, err := workers.NewScheduler(log, loc,
		workers.Task{Name: "archive", Schedule: cfg.ArchiveSchedule, Timeout: time.Hour, Run: func(ctx context.Context) error {
			_, err := app.Archiver.Run(ctx)
			return err
		}},
		workers.Task{Name: "cleanup", Schedule: cfg.CleanupSchedule, Timeout: time.Hour, Run: func(ctx context.Context) error {
			_, err := app.Cleaner.Run(ctx)
			return err
		}},
	)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Environment == "production" || cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterConfig{
		ServiceName: cfg.ServiceName,
		AdminToken:  cfg.AdminToken,
		DebugRoutes: cfg.DebugRoutes,
		Checker:     app.Checker,
		Sweeps:      handlers.NewSweepHandler(app.Archiver, app.Cleaner, log),
		Chats:       handlers.NewChatHandler(app.Tree),
		Emitter:     app.Emitter,
		Log:         log,
	})
	httpServer := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("admin http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		return health.NewGRPCServer(app.Checker, 10*time.Second, log).Serve(gctx, lis)
	})

	if consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	}

	log.Info("activity-sync started", zap.String("environment", cfg.Environment))
	err = g.Wait()
	log.Info("activity-sync stopping")
	return err
}

// newConsumer returns nil when AMQP is not configured.
func newConsumer(cfg config.Config, app *App) (*rabbitmq.Consumer, error) {
	if cfg.AMQPURL == "" {
		app.Log.Warn("AMQP_URL is empty, not consuming change events")
		return nil, nil
	}
	return rabbitmq.NewConsumer(consumerConfig(cfg), app.Router, app.Log)
}

func consumerConfig(cfg config.Config) rabbitmq.ConsumerConfig {
	return rabbitmq.ConsumerConfig{
		URL:                cfg.AMQPURL,
		Exchange:           cfg.EventsExchange,
		Queue:              cfg.EventsQueue,
		BindingKeys:        cfg.EventsBindingKeys,
		DeadLetterExchange: cfg.DeadLetterExchange,
		ConsumerTag:        cfg.ServiceName,
		Concurrency:        cfg.WorkerConcurrency,
		OwnRoutingKeys:     []string{cfg.PushRoutingKey, cfg.InvocationRoutingKey},
	}
}
