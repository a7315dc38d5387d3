package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rideon-backend/internal/config"
	"rideon-backend/internal/database"
	"rideon-backend/internal/handlers"
	"rideon-backend/internal/logging"
	"rideon-backend/internal/middleware"
	"rideon-backend/internal/services"
	"rideon-backend/internal/websocket"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Error("database migrations failed", "error", err)
		os.Exit(1)
	}
	store := database.NewStore(db)

	if cfg.Seed {
		if err := database.SeedUsers(store); err != nil {
			logger.Error("seeding failed", "error", err)
			os.Exit(1)
		}
		logger.Info("demo users seeded")
	}

	var index services.RiderIndex
	if cfg.RedisAddr != "" {
		index = services.NewRedisRiderIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		logger.Info("rider geo index backed by redis", "addr", cfg.RedisAddr)
	} else {
		index = services.NewMemoryRiderIndex()
		logger.Info("rider geo index in memory")
	}
	warmRiderIndex(store, index, logger)

	var events services.RideEventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := services.NewKafkaRideEvents(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		events = kp
		logger.Info("ride events published to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	rideSvc := &services.RideService{
		Rides:  store,
		Users:  store,
		Events: events,
		Logger: logger,
		NewID:  func() string { return uuid.New().String() },
	}

	hub := websocket.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Real-time channel; identity carried in handshake parameters.
	r.Get("/ws", websocket.Handler(hub, cfg.JWTSecret))

	// Public auth routes.
	r.Post("/api/users", handlers.Register(store, cfg.JWTSecret, cfg.TokenTTL))
	r.Post("/api/users/login", handlers.Login(store, cfg.JWTSecret, cfg.TokenTTL))

	// Authenticated API.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))

		r.Get("/users/profile", handlers.GetProfile(store))
		r.Put("/users/profile", handlers.UpdateProfile(store, index))
		r.Delete("/users/profile", handlers.DeleteAccount(store, index))
		r.Get("/users/riders", handlers.NearbyRiders(store, index))

		r.Get("/presence", handlers.Presence(hub))
		r.Get("/riders/earnings", handlers.Earnings(store))

		r.Route("/rides", func(r chi.Router) {
			r.Post("/", handlers.CreateRide(rideSvc))
			r.Get("/", handlers.ListRides(rideSvc))
			r.Get("/{id}", handlers.GetRide(rideSvc))
			r.Put("/{id}/accept", handlers.AcceptRide(rideSvc))
			r.Put("/{id}/start", handlers.StartRide(rideSvc))
			r.Put("/{id}/complete", handlers.CompleteRide(rideSvc))
			r.Put("/{id}/cancel", handlers.CancelRide(rideSvc))
			r.Put("/{id}/rate", handlers.RateRide(rideSvc))
		})
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// warmRiderIndex reloads available riders into the geo index so the
// nearby-riders query works right after a restart, before the riders
// next report a location.
func warmRiderIndex(store *database.Store, index services.RiderIndex, logger *slog.Logger) {
	ctx := context.Background()
	riders, err := store.AvailableRiders(ctx)
	if err != nil {
		logger.Warn("rider index warmup failed", "error", err)
		return
	}
	for i := range riders {
		r := &riders[i]
		if err := index.Upsert(ctx, r.ID, r.Longitude, r.Latitude); err != nil {
			logger.Warn("rider index warmup upsert failed", "rider_id", r.ID, "error", err)
		}
	}
	if len(riders) > 0 {
		logger.Info("rider geo index warmed", "riders", len(riders))
	}
}
