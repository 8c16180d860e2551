package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vau-explorer/config"
	"vau-explorer/handlers"
	"vau-explorer/logger"
	"vau-explorer/metrics"
	"vau-explorer/middleware"
	"vau-explorer/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L().Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Error("MongoDB connection failed", "err", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())
	if err := mongoClient.Ping(ctx, nil); err != nil {
		log.Error("Failed to ping MongoDB", "err", err)
		os.Exit(1)
	}
	log.Info("Connected to MongoDB", "db", cfg.MongoDB)
	db := mongoClient.Database(cfg.MongoDB)

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "err", err)
		os.Exit(1)
	}

	// Services
	poiService := services.NewPOIService(db.Collection("pois"), redisClient)
	if err := poiService.Init(ctx, cfg.POISeedFile); err != nil {
		log.Error("Failed to initialise POIs", "err", err)
		os.Exit(1)
	}
	hitService := services.NewHitService(db.Collection("hits"), redisClient, cfg.HitRateLimit)
	if err := hitService.Init(ctx); err != nil {
		log.Error("Failed to initialise hits", "err", err)
		os.Exit(1)
	}
	sessionService := services.NewSessionService(poiService, hitService, cfg.JWTSecret, cfg.SessionTTL, cfg.HitLogTimeout,
		services.WithMaxSessions(cfg.MaxSessions),
		services.WithStartLimit(services.RedisCounter{Client: redisClient}, cfg.SessionRateLimit),
	)
	go sessionService.RunJanitor(ctx, time.Minute)

	// Handlers
	poiHandler := handlers.NewPOIHandler(poiService)
	hitHandler := handlers.NewHitHandler(hitService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	adminHandler := handlers.NewAdminHandler(poiService)
	configHandler := handlers.NewConfigHandler(cfg.MapboxToken)

	r := mux.NewRouter()
	r.Use(logger.AccessMiddleware(log))
	r.Use(middleware.ErrorMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	// POI routes
	r.HandleFunc("/pois", poiHandler.GetPOIs).Methods("GET", "OPTIONS")
	r.HandleFunc("/pois/geojson", poiHandler.GetPOIsGeoJSON).Methods("GET", "OPTIONS")
	r.HandleFunc("/pois/nearby", poiHandler.GetNearbyPOIs).Methods("GET", "OPTIONS")
	r.HandleFunc("/hits", hitHandler.LogHit).Methods("POST", "OPTIONS")
	r.HandleFunc("/config/map-token", configHandler.MapToken).Methods("GET", "OPTIONS")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Session routes
	r.HandleFunc("/sessions", sessionHandler.StartSession).Methods("POST", "OPTIONS")
	sessionRouter := r.PathPrefix("/sessions").Subrouter()
	sessionRouter.Use(middleware.JWTMiddleware(cfg.JWTSecret))
	sessionRouter.HandleFunc("", sessionHandler.StopSession).Methods("DELETE", "OPTIONS")
	sessionRouter.HandleFunc("/location", sessionHandler.PingLocation).Methods("POST", "OPTIONS")
	sessionRouter.HandleFunc("/location-error", sessionHandler.ReportLocationError).Methods("POST", "OPTIONS")
	sessionRouter.HandleFunc("/select", sessionHandler.SelectPOI).Methods("POST", "OPTIONS")
	sessionRouter.HandleFunc("/open", sessionHandler.OpenPOI).Methods("POST", "OPTIONS")
	sessionRouter.HandleFunc("/reset", sessionHandler.ResetSession).Methods("POST", "OPTIONS")

	// Admin routes
	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middleware.AdminAuthMiddleware(cfg.AdminPasswordHash))
	adminRouter.HandleFunc("/pois", adminHandler.ListPOIs).Methods("GET", "OPTIONS")
	adminRouter.HandleFunc("/pois", adminHandler.CreatePOI).Methods("POST")
	adminRouter.HandleFunc("/pois", adminHandler.UpdatePOI).Methods("PATCH")
	adminRouter.HandleFunc("/pois/{id}", adminHandler.UpdatePOI).Methods("PATCH")
	adminRouter.HandleFunc("/pois", adminHandler.DeletePOI).Methods("DELETE")
	adminRouter.HandleFunc("/pois/{id}", adminHandler.DeletePOI).Methods("DELETE")
	if cfg.AdminPasswordHash == "" {
		log.Warn("ADMIN_PASSWORD_HASH is not set, admin routes are disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Server starting", "addr", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "err", err)
	}
	sessionService.Shutdown()
}
