package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	redis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/lockguard/lockguard/internal/calendar"
	"github.com/lockguard/lockguard/internal/certification"
	"github.com/lockguard/lockguard/internal/concurrency"
	"github.com/lockguard/lockguard/internal/config"
	"github.com/lockguard/lockguard/internal/fingerprint"
	"github.com/lockguard/lockguard/internal/http_api"
	"github.com/lockguard/lockguard/internal/lockmanager"
	"github.com/lockguard/lockguard/internal/metrics"
	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/internal/notificator"
	"github.com/lockguard/lockguard/internal/repository"
	"github.com/lockguard/lockguard/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "lockguard",
		Usage: "Lease lock service guarding certification requests against concurrent duplicates",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: "Lock store backend (postgres, redis, memory)"},
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.StringFlag{Name: "redis-addr", Aliases: []string{"r"}, Usage: "Redis address"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
			&cli.IntFlag{Name: "lock-timeout", Usage: "Lock lease in seconds"},
			&cli.IntFlag{Name: "cleanup-interval", Usage: "Expired lock sweep interval in milliseconds"},
			&cli.StringSliceFlag{Name: "holiday", Usage: "Non-business day (YYYY-MM-DD) added to the calendar, repeatable"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// lockBackend is what every store offers the rest of the service.
type lockBackend interface {
	models.LockStore
	models.HolidayStore
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("backend") {
		cfg.LockBackend = strings.ToLower(c.String("backend"))
	}
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("redis-addr") {
		cfg.RedisAddr = c.String("redis-addr")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("lock-timeout") {
		cfg.LockTimeoutSeconds = c.Int("lock-timeout")
	}
	if c.IsSet("cleanup-interval") {
		cfg.LockCleanupIntervalMS = c.Int("cleanup-interval")
	}
	if c.IsSet("holiday") {
		cfg.Holidays = append(cfg.Holidays, c.StringSlice("holiday")...)
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	// Initialize lock store
	store, closeStore, err := openBackend(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Errorw("Failed to close lock store", "error", err)
		}
	}()

	registry := metrics.NewRegistry()
	metrics.RegisterMetrics(registry)

	manager := lockmanager.NewManager(store, log.Named("locks"), lockmanager.Options{
		LeaseTTL:        cfg.LockTTL(),
		SweepInterval:   cfg.SweepInterval(),
		ServiceTag:      cfg.ServiceName,
		DefaultIdentity: cfg.DefaultUser,
	})
	executor := concurrency.NewExecutor(manager, log.Named("executor"),
		concurrency.WithAttempts(cfg.ExecutorAttempts),
		concurrency.WithRetryDelay(cfg.RetryDelay()),
	)
	log.Infow("Lock manager ready", "backend", cfg.LockBackend, "lease_ttl", manager.LeaseTTL(), "sweep_interval", cfg.SweepInterval())
	gate := fingerprint.NewGate(manager, cfg.FingerprintNamespace, log.Named("gate"))
	if err := calendar.Seed(context.Background(), store, cfg.CalendarCode, cfg.Holidays); err != nil {
		return fmt.Errorf("failed to seed holidays: %w", err)
	}
	holidays := calendar.NewService(store, cfg.CalendarRefresh(), log.Named("calendar"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize notificator
	var telegram *notificator.TelegramNotificator
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		telegram, err = notificator.NewTelegramNotificator(log.Named("telegram"), cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			return err
		}
	}
	var email *notificator.EmailNotificator
	if cfg.SMTPHost != "" && cfg.NotifyEmail != "" {
		email = notificator.NewEmailNotificator(log.Named("email"), cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender, cfg.NotifyEmail)
	}
	notifications := notificator.NewNotificator(log.Named("notificator"), telegram, email)

	service := certification.NewService(gate, executor, holidays, certification.DefaultValidator{}, notifications,
		log.Named("certification"), certification.WithCalendarCode(cfg.CalendarCode))

	var apiServer models.APIServer = http_api.NewHTTPServer(service, executor, manager, registry, cfg.APIPort, log.Named("http"))

	// Start background work
	manager.Start()
	defer manager.Stop()
	holidays.StartPeriodicUpdate()
	defer holidays.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(apiServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		return apiServer.Shutdown()
	})
	if telegram != nil {
		g.Go(func() error {
			telegram.Start(gctx)
			return nil
		})
	}

	err = g.Wait()
	service.Wait()
	log.Info("lockguard stopped")
	return err
}

func openBackend(cfg *config.Config, log *logger.Logger) (lockBackend, func() error, error) {
	switch cfg.LockBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Infow("Using redis lock store", "addr", cfg.RedisAddr)
		store := repository.NewRedisStore(client, cfg.RedisKeyPrefix, log.Named("redis"))
		return store, store.Close, nil
	case config.BackendMemory:
		log.Warn("Using in-memory lock store, locks are not shared between processes")
		return repository.NewMemoryStore(), func() error { return nil }, nil
	default:
		store, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log.Named("postgres"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %v", err)
		}
		return store, store.Close, nil
	}
}
