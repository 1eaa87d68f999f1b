package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	modbilling "github.com/payflowhq/payflow/modules/billing"
	"github.com/payflowhq/payflow/pkg/account"
	"github.com/payflowhq/payflow/pkg/billing"
	"github.com/payflowhq/payflow/pkg/config"
	"github.com/payflowhq/payflow/pkg/dunning"
	"github.com/payflowhq/payflow/pkg/invoice"
	"github.com/payflowhq/payflow/pkg/logger"
	"github.com/payflowhq/payflow/pkg/mailer"
	"github.com/payflowhq/payflow/pkg/pg"
	"github.com/payflowhq/payflow/pkg/plan"
	"github.com/payflowhq/payflow/pkg/redis"
	"github.com/payflowhq/payflow/pkg/subscription"
	"github.com/payflowhq/payflow/pkg/tenantlock"
)

type appConfig struct {
	Logger logger.Config
	PG     pg.Config
	Redis  redis.Config
	Stripe billing.Config
	Mailer mailer.Config

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	TrialDays       int           `env:"TRIAL_DAYS" envDefault:"14"`
	ConvertSchedule string        `env:"TRIAL_CONVERT_SCHEDULE" envDefault:"0 3 * * *"`
	DunningSchedule string        `env:"DUNNING_SCHEDULE" envDefault:"0 9 * * *"`
	SweepLockTTL    time.Duration `env:"SWEEP_LOCK_TTL" envDefault:"30m"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("payflow exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.NewFromConfig(cfg.Logger, logger.WithAttr(slog.String("app", "payflow")))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	processor, err := billing.NewStripeProcessor(cfg.Stripe)
	if err != nil {
		return fmt.Errorf("stripe: %w", err)
	}

	var sender mailer.EmailSender
	if cfg.Mailer.PostmarkServerToken != "" {
		sender, err = mailer.NewPostmarkSender(cfg.Mailer)
		if err != nil {
			return fmt.Errorf("postmark: %w", err)
		}
	} else {
		log.Warn("no postmark token configured, dunning emails go to the log")
		sender = mailer.NewLogSender(log)
	}

	accountStore := account.NewPGStore(pool)
	planStore := plan.NewPGStore(pool)
	subsStore := subscription.NewPGStore(pool)
	invoiceStore := invoice.NewPGStore(pool)
	dunningStore := dunning.NewPGStore(pool)

	resolver := account.NewResolver(accountStore, log)
	sweepGuard := tenantlock.NewRedisLocker(redisClient, cfg.SweepLockTTL)

	subsService := subscription.NewService(subsStore, planStore, processor,
		subscription.WithTrialDays(cfg.TrialDays),
		subscription.WithCurrency(cfg.Stripe.Currency),
		subscription.WithLogger(log),
	)
	converter := subscription.NewConverter(subsStore, planStore, processor,
		subscription.WithSweepGuard(sweepGuard),
		subscription.WithConverterLogger(log),
	)
	engine := dunning.NewEngine(dunningStore, invoiceStore, dunningStore,
		dunning.NewEmailNotifier(sender, log),
		dunning.WithEngineGuard(sweepGuard),
		dunning.WithEngineLogger(log),
	)

	var verifier *billing.WebhookVerifier
	if cfg.Stripe.WebhookSecret != "" {
		verifier = billing.NewWebhookVerifier(cfg.Stripe.WebhookSecret)
	} else {
		log.Warn("no stripe webhook secret configured, webhook endpoint disabled")
	}

	module := modbilling.NewModule(modbilling.ModuleOptions{
		Resolver:  resolver,
		Subs:      subsService,
		Converter: converter,
		Engine:    engine,
		Plans:     planStore,
		Verifier:  verifier,
		Logger:    log,
	})

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ConvertSchedule, func() {
		if _, err := converter.Run(ctx); err != nil {
			log.Error("trial conversion sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("conversion schedule: %w", err)
	}
	if _, err := scheduler.AddFunc(cfg.DunningSchedule, func() {
		if _, err := engine.Run(ctx); err != nil {
			log.Error("dunning sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("dunning schedule: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", healthHandler(pg.Healthcheck(pool), redis.Healthcheck(redisClient)))
	router.Mount("/", module.Router())

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("payflow listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthHandler(checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
