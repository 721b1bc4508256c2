package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobtracker/client/internal/api"
	"jobtracker/client/internal/cache"
	"jobtracker/client/internal/cache/file"
	"jobtracker/client/internal/cache/redis"
	"jobtracker/client/internal/config"
	"jobtracker/client/internal/dashboard"
	"jobtracker/client/internal/notify"
	"jobtracker/client/internal/session"
	"jobtracker/client/internal/telemetry"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

func newCache(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	opts := cache.Options{
		DefaultTTL:    cfg.SessionTTL,
		Dir:           cfg.SessionDir,
		RedisURL:      cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Logger:        logger,
	}

	var c cache.Cache
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		c = redis.New(opts)
	default:
		fc, err := file.New(opts)
		if err != nil {
			return nil, err
		}
		c = fc
	}
	logger.Debug("session cache ready", zap.String("backend", cfg.SessionBackend))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})
	return c, nil
}

func newSessionStore(c cache.Cache, logger *zap.Logger) (*session.Store, error) {
	return session.NewStore(context.Background(), c, logger)
}

// newReporter prints notices on stderr and logs them. When NATS_URL is set
// they are also published there; an unreachable server only costs a warning.
func newReporter(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) notify.Reporter {
	reporters := []notify.Reporter{
		notify.NewWriterReporter(os.Stderr),
		notify.NewLogReporter(logger),
	}

	if cfg.NATSURL != "" {
		publisher, err := notify.NewNATSReporter(logger, cfg)
		if err != nil {
			logger.Warn("notices will not be published", zap.Error(err))
		} else {
			reporters = append(reporters, publisher)
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					publisher.Close()
					return nil
				},
			})
		}
	}
	return notify.Multi(reporters...)
}

func newNavigator(logger *zap.Logger) api.Navigator {
	return api.NavigatorFunc(func(path string) {
		logger.Debug("redirect", zap.String("path", path))
		fmt.Fprintln(os.Stderr, "Your session has expired. Run `tracker login` to sign in again.")
	})
}

func newGateway(logger *zap.Logger, cfg *config.Config, store *session.Store, reporter notify.Reporter, navigator api.Navigator) *api.Gateway {
	return api.NewGateway(logger, cfg, store, reporter, navigator)
}

func newRecordService(logger *zap.Logger, gateway *api.Gateway) *api.RecordService {
	return api.NewRecordService(logger, gateway)
}

func newAuthService(logger *zap.Logger, gateway *api.Gateway, store *session.Store) *api.AuthService {
	return api.NewAuthService(logger, gateway, store)
}

func newController(logger *zap.Logger, records *api.RecordService, reporter notify.Reporter) *dashboard.Controller {
	return dashboard.NewController(logger, records, reporter)
}

func newStatsPanel(logger *zap.Logger, records *api.RecordService, reporter notify.Reporter) *dashboard.StatsPanel {
	return dashboard.NewStatsPanel(logger, records, reporter)
}

func newCoordinator(logger *zap.Logger, records *api.RecordService, list *dashboard.Controller, stats *dashboard.StatsPanel, prompt *prompter, reporter notify.Reporter) *dashboard.Coordinator {
	return dashboard.NewCoordinator(logger, records, list, stats, prompt, reporter)
}

func newPrompter() *prompter {
	return newPrompterFor(os.Stdin, os.Stderr)
}

func newCLI(auth *api.AuthService, records *api.RecordService, list *dashboard.Controller, stats *dashboard.StatsPanel, coord *dashboard.Coordinator, prompt *prompter) *cli {
	return &cli{
		auth:    auth,
		records: records,
		list:    list,
		stats:   stats,
		coord:   coord,
		prompt:  prompt,
		out:     os.Stdout,
		errOut:  os.Stderr,
	}
}

func startTracing(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) {
	if cfg.OTELCollectorURL == "" {
		return
	}

	var shutdown func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, "jobtracker-client", cfg.OTELCollectorURL)
			if err != nil {
				logger.Warn("tracing disabled", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			if err := shutdown(ctx); err != nil {
				logger.Warn("tracer shutdown", zap.Error(err))
			}
			return nil
		},
	})
}

func main() {
	var tracker *cli
	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			config.LoadConfig,
			newLogger,
			newCache,
			newSessionStore,
			newReporter,
			newNavigator,
			newGateway,
			newRecordService,
			newAuthService,
			newController,
			newStatsPanel,
			newPrompter,
			newCoordinator,
			newCLI,
		),
		fx.Invoke(startTracing),
		fx.Populate(&tracker),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runErr := tracker.run(ctx, os.Args[1:])
	stop()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	if runErr != nil {
		if runErr != errReported {
			fmt.Fprintln(os.Stderr, "error:", runErr)
		}
		os.Exit(1)
	}
}
