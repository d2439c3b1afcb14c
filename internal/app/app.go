package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/exaring/otelpgx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/riandyrn/otelchi"
	"github.com/stripe/stripe-go/v82"

	"github.com/visaflow/visaflow-api/internal/domain"
	"github.com/visaflow/visaflow-api/internal/gateway"
	"github.com/visaflow/visaflow-api/internal/mailer"
	"github.com/visaflow/visaflow-api/internal/payment"
	"github.com/visaflow/visaflow-api/internal/repository"
	appvalidator "github.com/visaflow/visaflow-api/internal/validator"
	"github.com/visaflow/visaflow-api/internal/vcs"
)

var (
	version = vcs.Version()
)

type Application struct {
	config         Config
	logger         *slog.Logger
	db             *pgxpool.Pool
	redis          redis.UniversalClient
	validator      *validator.Validate
	mailer         mailer.Mailer
	sessionManager *scs.SessionManager

	paymentRepo domain.PaymentRepository
	refundRepo  domain.RefundRepository

	router  *payment.Router
	refunds *payment.RefundOrchestrator
}

type Config struct {
	Port             int
	Env              string
	OtelCollectorUrl string
	AutoMigrate      bool

	DB      DBConfig
	Redis   RedisConfig
	SMTP    SMTPConfig
	Stripe  StripeConfig
	Wallet  WalletConfig
	Payment PaymentConfig
}

type DBConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleTime  time.Duration
}

type RedisConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessUrl    string
	FailureUrl    string
}

type WalletConfig struct {
	BaseUrl       string
	ApiKey        string
	WebhookSecret string
}

type PaymentConfig struct {
	FallbackStrategy   string
	FallbackPreference []string
	MaxAttempts        int
	BaseDelay          time.Duration
	MaxDelay           time.Duration
	RefundWindow       time.Duration
}

func Run() error {
	var cfg Config
	var fallbackPreference string

	flag.IntVar(&cfg.Port, "port", 3000, "server port")
	flag.StringVar(&cfg.Env, "env", "dev", "Environment (dev|staging|prod)")
	flag.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", "", "OpenTelemetry collector URL")
	flag.BoolVar(&cfg.AutoMigrate, "auto-migrate", true, "Apply database migrations on startup")

	flag.StringVar(&cfg.DB.DSN, "db-dsn", "", "PostgreSQL DSN")
	flag.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.Redis.URL, "redis-url", "", "Redis URL")
	flag.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.SMTP.Host, "smtp-host", "sandbox.smtp.mailtrap.io", "SMTP host")
	flag.IntVar(&cfg.SMTP.Port, "smtp-port", 2525, "SMTP port")
	flag.StringVar(&cfg.SMTP.Username, "smtp-username", "", "SMTP username")
	flag.StringVar(&cfg.SMTP.Password, "smtp-password", "", "SMTP password")
	flag.StringVar(&cfg.SMTP.Sender, "smtp-sender", "VisaFlow <no-reply@visaflow.io>", "SMTP sender")

	flag.StringVar(&cfg.Stripe.SecretKey, "stripe-key", "", "Stripe secret key")
	flag.StringVar(&cfg.Stripe.WebhookSecret, "stripe-webhook-secret", "", "Stripe webhook secret")
	flag.StringVar(&cfg.Stripe.SuccessUrl, "stripe-success-url", "https://app.visaflow.io/payments/success", "Stripe payment success page")
	flag.StringVar(&cfg.Stripe.FailureUrl, "stripe-failure-url", "https://app.visaflow.io/payments/failure", "Stripe payment failure page")

	flag.StringVar(&cfg.Wallet.BaseUrl, "wallet-base-url", "", "Wallet gateway base URL")
	flag.StringVar(&cfg.Wallet.ApiKey, "wallet-api-key", "", "Wallet gateway API key")
	flag.StringVar(&cfg.Wallet.WebhookSecret, "wallet-webhook-secret", "", "Wallet gateway webhook secret")

	flag.StringVar(&cfg.Payment.FallbackStrategy, "fallback-strategy", "sequential", "Gateway fallback strategy (sequential|random)")
	flag.StringVar(&fallbackPreference, "fallback-preference", "", "Comma-separated gateway fallback preference order")
	flag.IntVar(&cfg.Payment.MaxAttempts, "gateway-max-attempts", 3, "Max attempts per gateway call")
	flag.DurationVar(&cfg.Payment.BaseDelay, "gateway-base-delay", 500*time.Millisecond, "Base retry backoff delay")
	flag.DurationVar(&cfg.Payment.MaxDelay, "gateway-max-delay", 10*time.Second, "Max retry backoff delay")
	flag.DurationVar(&cfg.Payment.RefundWindow, "refund-window", payment.DefaultRefundWindow, "Max payment age eligible for refunds")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	if fallbackPreference != "" {
		cfg.Payment.FallbackPreference = splitAndTrim(fallbackPreference)
	}

	app, cleanup, err := NewApplication(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	shutdownTelemetry, err := app.InitTelemetry()
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	return app.serve()
}

// NewApplication wires the full dependency graph from configuration. The
// returned cleanup closes the database and Redis connections.
func NewApplication(cfg Config) (*Application, func(), error) {
	stripe.Key = cfg.Stripe.SecretKey

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	db, err := newDatabasePool(cfg)
	if err != nil {
		return nil, nil, err
	}

	if cfg.AutoMigrate {
		if err := applyMigrations(cfg.DB.DSN); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("applying migrations: %w", err)
		}
	}

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		redisClient.Close()
		db.Close()
	}

	paymentRepo := repository.NewPostgresPaymentRepository(db)
	refundRepo := repository.NewPostgresRefundRepository(db)
	webhookRepo := repository.NewPostgresWebhookAttemptRepository(db)
	auditRepo := repository.NewPostgresAuditLogRepository(db)

	adapters := map[domain.PaymentMethod]domain.PaymentGateway{
		gateway.MethodCard: gateway.NewStripeGateway(cfg.Stripe.SuccessUrl, cfg.Stripe.FailureUrl, cfg.Stripe.WebhookSecret),
	}
	verifiers := map[domain.PaymentMethod]payment.SignatureVerifier{
		gateway.MethodCard: gateway.NewStripeWebhookVerifier(cfg.Stripe.WebhookSecret),
	}

	if cfg.Wallet.BaseUrl != "" {
		adapters[gateway.MethodWallet] = gateway.NewWalletGateway(cfg.Wallet.BaseUrl, cfg.Wallet.ApiKey, cfg.Wallet.WebhookSecret)
		verifiers[gateway.MethodWallet] = payment.NewHMACVerifier(cfg.Wallet.WebhookSecret)
	}

	audit := payment.NewAuditLogger(logger, auditRepo)
	retrier := payment.NewRetryExecutor(payment.RetryConfig{
		MaxAttempts: cfg.Payment.MaxAttempts,
		BaseDelay:   cfg.Payment.BaseDelay,
		Multiplier:  2.0,
		MaxDelay:    cfg.Payment.MaxDelay,
	}, audit)
	security := payment.NewWebhookSecurityService(webhookRepo, redisClient, verifiers, logger)

	metrics, err := payment.NewMetrics()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	router := payment.NewRouter(payment.RouterParams{
		Adapters: adapters,
		Config: payment.RouterConfig{
			FallbackStrategy:   payment.FallbackStrategy(cfg.Payment.FallbackStrategy),
			FallbackPreference: toMethods(cfg.Payment.FallbackPreference),
		},
		Retrier:  retrier,
		Audit:    audit,
		Security: security,
		Payments: paymentRepo,
		Metrics:  metrics,
		Logger:   logger,
	})

	refunds := payment.NewRefundOrchestrator(payment.RefundOrchestratorParams{
		Adapters: adapters,
		Config:   payment.RefundConfig{Window: cfg.Payment.RefundWindow},
		Retrier:  retrier,
		Audit:    audit,
		Payments: paymentRepo,
		Refunds:  refundRepo,
		Metrics:  metrics,
		Logger:   logger,
	})

	app := &Application{
		config:         cfg,
		logger:         logger,
		db:             db,
		redis:          redisClient,
		validator:      appvalidator.NewValidator(),
		mailer:         mailer.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Sender),
		sessionManager: newSessionManager(redisClient),
		paymentRepo:    paymentRepo,
		refundRepo:     refundRepo,
		router:         router,
		refunds:        refunds,
	}

	return app, cleanup, nil
}

func newSessionManager(client redis.UniversalClient) *scs.SessionManager {
	sessionManager := scs.New()

	// Sessions are established by the accounts service; this service only
	// reads the authenticated user id from the shared store.
	sessionManager.Store = goredisstore.New(client.(*redis.Client))
	sessionManager.IdleTimeout = 20 * time.Minute
	sessionManager.Cookie.Name = "session_id"

	return sessionManager
}

func newRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	if err := redisotel.InstrumentTracing(rdb); err != nil {
		return nil, err
	}
	if err := redisotel.InstrumentMetrics(rdb); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func newDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
		}

		shutdownError <- nil
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(otelchi.Middleware("visaflow-api", otelchi.WithChiRoutes(r)))
	r.Use(app.recoverPanic)
	r.Use(app.sessionManager.LoadAndSave)

	r.Get("/health", app.GetHealth)

	r.Get("/payment-methods", app.GetPaymentMethodsHandler)
	r.Get("/payment-methods/{method}", app.GetPaymentMethodHandler)

	// Providers authenticate with signatures, not sessions.
	r.Post("/webhooks/{method}", app.GatewayWebhookHandler)

	r.With(app.requireAuthentication).Route("/payments", func(r chi.Router) {
		r.Post("/", app.CreatePaymentHandler)
		r.Get("/{paymentId}", app.GetPaymentHandler)
		r.Post("/{paymentId}/verify", app.VerifyPaymentHandler)
		r.Post("/{paymentId}/cancel", app.CancelPaymentHandler)
		r.Post("/{paymentId}/refunds", app.CreateRefundHandler)
		r.Get("/{paymentId}/refunds", app.ListRefundsHandler)
	})

	r.With(app.requireAuthentication).Delete("/refunds/{refundId}", app.CancelRefundHandler)

	return r
}

func toMethods(names []string) []domain.PaymentMethod {
	methods := make([]domain.PaymentMethod, 0, len(names))
	for _, name := range names {
		methods = append(methods, domain.PaymentMethod(name))
	}
	return methods
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
