package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resort-booking/internal/analytics"
	analytics_api "resort-booking/internal/analytics/api"
	"resort-booking/internal/auth"
	"resort-booking/internal/booking"
	"resort-booking/internal/booking/booking_api"
	bookingdb "resort-booking/internal/booking/db"
	bookingredis "resort-booking/internal/booking/redis"
	"resort-booking/internal/catalog"
	"resort-booking/internal/catalog/catalog_api"
	catalogdb "resort-booking/internal/catalog/db"
	"resort-booking/internal/config"
	"resort-booking/internal/database/migrations"
	"resort-booking/internal/kafka"
	"resort-booking/internal/logger"
	"resort-booking/internal/notify"
	"resort-booking/internal/payment"
	"resort-booking/internal/sse"
	"resort-booking/internal/users"
	usersdb "resort-booking/internal/users/db"
	usersredis "resort-booking/internal/users/redis"
	"resort-booking/internal/users/users_api"
	"resort-booking/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func verifyConnections(cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	log.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient, err := auth.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger("resort-booking")
	defer log.Close()

	log.Info("APP", "Starting Resort Booking Service initialization")

	cfg, envLoaded, err := config.Load()
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid configuration: %v", err))
	}
	if envLoaded {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	} else {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	log.SetLevel(logger.ParseLevel(cfg.LogLevel))

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	log.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{}, log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Failed to run migrations: %v", err))
		}
	}

	// --- Notifications ---
	mailer := notify.NewMailer(
		notify.NewSMTPDialer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUsername, cfg.Email.SMTPPassword),
		cfg.Email.From, cfg.Server.PublicURL, cfg.Email.Timeout, log,
	)
	worker := notify.NewWorker(mailer, log)

	// --- Kafka ---
	var events booking.EventPublisher = worker
	if cfg.Kafka.Enabled {
		log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers %v", cfg.Kafka.Brokers))
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.AllTopics(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		events = producer

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID,
			[]string{kafka.TopicRefundApproved, kafka.TopicRefundRejected}, log)
		defer consumer.Close()
		go consumer.Start(ctx, worker.Handle)
	} else {
		log.Warn("KAFKA", "Kafka disabled, booking events are handled in-process")
	}

	// --- Auth ---
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	verifier := auth.Chain{jwtManager}
	if cfg.Auth.OIDCIssuer != "" {
		oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.AdminEmails)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("OIDC provider unavailable: %v", err))
		}
		verifier = append(verifier, oidcVerifier)
		log.Info("AUTH", fmt.Sprintf("Accepting tokens from %s", cfg.Auth.OIDCIssuer))
	}
	authn := auth.Middleware(verifier, log)
	optional := auth.OptionalMiddleware(verifier)

	// --- Services ---
	feed := sse.NewBookingEventEmitter()
	gateway := payment.NewRazorpay(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.Currency, log)

	catalogService := catalog.NewCatalogService(catalogdb.New(bunDB), log)

	bookingService := booking.NewBookingService(
		bookingdb.New(bunDB),
		catalogService,
		gateway,
		bookingredis.NewPaymentLock(redisClient, cfg.Booking.PaymentLockTTL, log),
		events,
		mailer,
		feed,
		log,
	)
	bookingService.Currency = cfg.Razorpay.Currency
	bookingService.MailTimeout = cfg.Email.Timeout

	holds := bookingredis.NewPaymentHolds(redisClient, cfg.Booking.PaymentWindow, log)
	bookingService.Holds = holds
	holds.Subscribe(ctx, func(ctx context.Context, bookingID string) {
		if err := bookingService.ExpireBooking(ctx, bookingID); err != nil {
			log.Error("BOOKING", fmt.Sprintf("Failed to expire booking %s: %v", bookingID, err))
		}
	})

	userService := users.NewUserService(usersdb.New(bunDB), usersredis.NewOTPStore(redisClient), mailer,
		jwtManager, cfg.Auth.IsAdminEmail, log)
	userService.OTPTTL = cfg.Auth.OTPTTL
	userService.Cooldown = cfg.Auth.OTPCooldown

	analyticsService := analytics.NewService(bunDB)

	// --- Router ---
	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(log.HTTPMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := bunDB.PingContext(r.Context()); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Database unavailable", err.Error()))
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	})

	users_api.NewHandler(userService, log).RegisterRoutes(r, authn)
	log.Info("ROUTER", "Auth routes registered under /api/auth")

	catalog_api.NewHandler(catalogService, log).RegisterRoutes(r, optional, authn)
	log.Info("ROUTER", "Catalog routes registered under /api/stays, /api/adventures, /api/events")

	booking_api.NewHandler(bookingService, feed, log).RegisterRoutes(r, authn)
	log.Info("ROUTER", "Booking, payment and refund routes registered")

	analytics_api.NewHandler(analyticsService, log).RegisterRoutes(r, authn)
	log.Info("ROUTER", "Analytics routes registered under /api/admin/analytics")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Resort Booking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	stopBackground()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Resort Booking Service shutdown complete")
	}
}
