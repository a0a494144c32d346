package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventpro/booking-api/config"
	repository "github.com/eventpro/booking-api/internal/database/postgres"
	rediscache "github.com/eventpro/booking-api/internal/database/redis"
	"github.com/eventpro/booking-api/internal/service"
	"github.com/eventpro/booking-api/internal/transport"
	"github.com/eventpro/booking-api/internal/transport/middleware"
	"github.com/eventpro/booking-api/internal/worker"

	"github.com/eventpro/booking-api/pkg/idempotency"
	"github.com/eventpro/booking-api/pkg/postgres"
	"github.com/eventpro/booking-api/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},           // ban on outdate TLS certificate
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags), // os.Stderr can be replaced with ElsasticSearch in the feature
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	eventRepo := repository.NewEventRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Initialize Redis-backed catalog cache and reservation deduper
	var catalogCache service.CatalogCache
	var deduper service.ReservationDeduper

	if cfg.Redis.Enabled {
		redisClient := redis.NewRedisClient(&cfg.Redis)
		defer redisClient.Close()

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.Errorf("Failed to connect to Redis: %v. Continuing without cache...", err)
		} else {
			catalogCache = rediscache.NewCacheRepository(redisClient, cfg.Catalog.CacheTTL)
			deduper = idempotency.NewDeduper(redisClient, cfg.Booking.IdempotencyTTL)
			logrus.Info("Redis cache initialized")
		}
	} else {
		logrus.Warn("Redis disabled, catalog cache and reservation dedup run degraded")
	}

	// Initialize services
	bookingService := service.NewBookingService(bookingRepo, eventRepo, catalogCache, deduper, &service.BookingOptions{
		MaxQuantity:    cfg.Booking.MaxQuantity,
		ReserveRetries: cfg.Booking.ReserveRetries,
		RetryBaseDelay: cfg.Booking.RetryBaseDelay,
		StoreTimeout:   cfg.Booking.StoreTimeout,
	})
	eventService := service.NewEventService(eventRepo, bookingRepo, catalogCache, cfg.Catalog.UpcomingLimit, cfg.Booking.StoreTimeout)
	userService := service.NewUserService(userRepo, cfg.Booking.StoreTimeout)

	// Initialize and start capacity audit worker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auditWorker := worker.NewCapacityAuditWorker(eventRepo, eventService, cfg.Worker.AuditInterval)
	go auditWorker.Start(ctx)
	logrus.Info("Capacity audit worker started")

	// Initialize handlers
	auth := middleware.NewAuth(&cfg.JWT, userService)
	eventHandler := transport.NewEventHandler(eventService)
	bookingHandler := transport.NewBookingHandler(bookingService)
	userHandler := transport.NewUserHandler(userService)

	// Setup HTTP server
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(eventHandler, bookingHandler, userHandler, auth)); err != nil {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	if err := srv.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
