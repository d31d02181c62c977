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
	"sync"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riandyrn/otelchi"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/volkanakin/storefront-checkout/internal/domain"
	"github.com/volkanakin/storefront-checkout/internal/fx"
	"github.com/volkanakin/storefront-checkout/internal/mailer"
	"github.com/volkanakin/storefront-checkout/internal/monero"
	"github.com/volkanakin/storefront-checkout/internal/payment"
	"github.com/volkanakin/storefront-checkout/internal/paypal"
	"github.com/volkanakin/storefront-checkout/internal/repository"
	appvalidator "github.com/volkanakin/storefront-checkout/internal/validator"
	"github.com/volkanakin/storefront-checkout/internal/vcs"
)

var (
	version = vcs.Version()
)

type Application struct {
	config    Config
	logger    *slog.Logger
	db        *pgxpool.Pool
	redis     redis.UniversalClient
	validator *validator.Validate
	mailer    mailer.Mailer
	wg        sync.WaitGroup

	orderRepo        domain.OrderRepository
	subscriptionRepo domain.SubscriptionRepository
	productRepo      domain.ProductRepository
	userRepo         domain.UserRepository
	membershipRepo   domain.MembershipRepository

	providers *payment.Registry
}

type Config struct {
	Port    int
	Env     string
	BaseURL string

	DB     DBConfig
	Redis  RedisConfig
	SMTP   SMTPConfig
	Stripe StripeConfig
	PayPal PayPalConfig
	Monero MoneroConfig

	OtelCollectorUrl string
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
	SecretKey  string
	SuccessURL string
	CancelURL  string
}

type PayPalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	ReturnURL    string
	CancelURL    string
}

type MoneroConfig struct {
	WalletRPCURL string
	Address      string
	EURPerXMR    float64
}

func Run() error {
	var cfg Config

	flag.IntVar(&cfg.Port, "port", 3000, "server port")
	flag.StringVar(&cfg.Env, "env", "dev", "Environment (dev|staging|prod)")
	flag.StringVar(&cfg.BaseURL, "base-url", "http://localhost:3000", "Public base URL for provider return pages")

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
	flag.StringVar(&cfg.SMTP.Sender, "smtp-sender", "Storefront <no-reply@storefront.volkanakin.net>", "SMTP sender")

	flag.StringVar(&cfg.Stripe.SecretKey, "stripe-key", "", "Stripe secret key")
	flag.StringVar(&cfg.Stripe.SuccessURL, "stripe-success-url", "", "Stripe payment success page (defaults to <base-url>/checkout/success)")
	flag.StringVar(&cfg.Stripe.CancelURL, "stripe-cancel-url", "", "Stripe payment cancel page (defaults to <base-url>/checkout/cancel)")

	flag.StringVar(&cfg.PayPal.BaseURL, "paypal-base-url", "https://api-m.sandbox.paypal.com", "PayPal API base URL")
	flag.StringVar(&cfg.PayPal.ClientID, "paypal-client-id", "", "PayPal client id")
	flag.StringVar(&cfg.PayPal.ClientSecret, "paypal-client-secret", "", "PayPal client secret")
	flag.StringVar(&cfg.PayPal.ReturnURL, "paypal-return-url", "", "PayPal return page (defaults to <base-url>/checkout/paypal/return)")
	flag.StringVar(&cfg.PayPal.CancelURL, "paypal-cancel-url", "", "PayPal cancel page (defaults to <base-url>/checkout/cancel)")

	flag.StringVar(&cfg.Monero.WalletRPCURL, "monero-wallet-rpc-url", "http://localhost:18083/json_rpc", "monero-wallet-rpc endpoint")
	flag.StringVar(&cfg.Monero.Address, "monero-address", "", "Monero receiving address")
	flag.Float64Var(&cfg.Monero.EURPerXMR, "monero-eur-rate", 140, "Fixed EUR price of 1 XMR")

	flag.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", "", "OpenTelemetry collector URL")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	if cfg.Stripe.SuccessURL == "" {
		cfg.Stripe.SuccessURL = cfg.BaseURL + "/checkout/success"
	}
	if cfg.Stripe.CancelURL == "" {
		cfg.Stripe.CancelURL = cfg.BaseURL + "/checkout/cancel"
	}
	if cfg.PayPal.ReturnURL == "" {
		cfg.PayPal.ReturnURL = cfg.BaseURL + "/checkout/paypal/return"
	}
	if cfg.PayPal.CancelURL == "" {
		cfg.PayPal.CancelURL = cfg.BaseURL + "/checkout/cancel"
	}

	textHandler := slog.NewTextHandler(os.Stdout, nil)
	logger := slog.New(textHandler)

	app, cleanup, err := New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		return err
	}
	defer cleanup()

	shutdownTelemetry, err := app.InitTelemetry()
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		return err
	}
	defer shutdownTelemetry(context.Background())

	if cfg.OtelCollectorUrl != "" {
		otelHandler := otelslog.NewHandler("storefront-checkout-api")
		app.logger = slog.New(NewMultiHandler(textHandler, otelHandler))
	}

	return app.Serve()
}

// New wires the application from config: connection pools, repositories,
// the per-provider adapter registry and the mailer.
func New(cfg Config, logger *slog.Logger) (*Application, func(), error) {
	stripe.Key = cfg.Stripe.SecretKey

	db, err := newDatabasePool(cfg)
	if err != nil {
		return nil, nil, err
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

	rates := fx.NewFixedEURXMR(decimal.NewFromFloat(cfg.Monero.EURPerXMR))
	walletClient := monero.NewClient(cfg.Monero.WalletRPCURL)
	paypalClient := paypal.NewClient(paypal.Config{
		BaseURL:      cfg.PayPal.BaseURL,
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
	})

	stripeProvider := payment.NewStripeProvider(cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL)
	paypalProvider := payment.NewPayPalProvider(paypalClient, cfg.PayPal.ReturnURL, cfg.PayPal.CancelURL)
	moneroProvider := payment.NewMoneroProvider(walletClient, redisClient, rates, cfg.Monero.Address, cfg.BaseURL)

	providers := payment.NewRegistry()
	providers.Register(domain.PaymentMethodStripe, stripeProvider)
	providers.Register(domain.PaymentMethodSepaDebit, stripeProvider)
	providers.Register(domain.PaymentMethodPayPal, paypalProvider)
	providers.Register(domain.PaymentMethodMonero, moneroProvider)

	app := &Application{
		config:           cfg,
		logger:           logger,
		db:               db,
		redis:            redisClient,
		validator:        appvalidator.NewValidator(),
		mailer:           mailer.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Sender),
		orderRepo:        repository.NewPostgresOrderRepository(db),
		subscriptionRepo: repository.NewPostgresSubscriptionRepository(db),
		productRepo:      repository.NewPostgresProductRepository(db),
		userRepo:         repository.NewPostgresUserRepository(db),
		membershipRepo:   repository.NewPostgresMembershipRepository(db),
		providers:        providers,
	}

	return app, cleanup, nil
}

func newRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

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

func (app *Application) Serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
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
			return
		}

		// Let background mail sends finish before exiting.
		app.wg.Wait()
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
	r.Use(app.recoverPanic)

	if app.config.OtelCollectorUrl != "" {
		r.Use(otelchi.Middleware("storefront-checkout-api", otelchi.WithChiRoutes(r)))
	}

	r.Get("/healthcheck", app.GetHealth)

	r.Route("/api/checkout", func(r chi.Router) {
		r.Post("/stripe", app.CreateStripeCheckoutHandler)
		r.Get("/stripe", app.VerifyStripeCheckoutHandler)

		r.Post("/paypal", app.CreatePayPalCheckoutHandler)
		r.Get("/paypal", app.VerifyPayPalCheckoutHandler)

		r.Post("/monero", app.CreateMoneroCheckoutHandler)
		r.Get("/monero", app.VerifyMoneroCheckoutHandler)
	})

	return r
}
