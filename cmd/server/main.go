package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shiptrace/internal/config"
	"shiptrace/internal/controllers"
	"shiptrace/internal/logger"
	"shiptrace/internal/middleware"
	"shiptrace/internal/routes"
	"shiptrace/internal/routing"
	"shiptrace/internal/store"
)

func main() {
	// shiptrace hash-password <password> prints a value for ADMIN_PASSWORD_HASH
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		hash, err := controllers.HashPassword(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg := config.Load()

	// Initialize structured logging to file
	logWriter := logger.Setup(cfg.LogFile, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	shipments, closeStore := openStore(cfg)
	defer closeStore()

	var (
		provider routing.PathProvider
		geocoder routing.Geocoder
	)
	if cfg.ORSAPIKey != "" {
		ors := routing.NewORSClient(routing.ORSConfig{
			APIKey:  cfg.ORSAPIKey,
			BaseURL: cfg.ORSBaseURL,
			Profile: cfg.ORSProfile,
		})
		provider, geocoder = ors, ors
	} else {
		logrus.Warn("ORS_API_KEY not set; routes will not be generated and geocoding is disabled")
	}

	hub := controllers.NewTrackingHub(100)
	defer hub.Close()

	tokens := middleware.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	r := routes.SetupRouter(routes.Deps{
		Shipments: &controllers.ShipmentController{
			Store:  shipments,
			Routes: routing.NewGenerator(provider, routing.SampleOptions{}),
			Hub:    hub,
		},
		Tracking: &controllers.TrackingController{Store: shipments},
		Sockets:  &controllers.TrackingSocketController{Store: shipments, Hub: hub},
		Auth: &controllers.AuthController{
			Username:     cfg.AdminUsername,
			Password:     cfg.AdminPassword,
			PasswordHash: cfg.AdminPasswordHash,
			Tokens:       tokens,
		},
		Geocode:      &controllers.GeocodeController{Geocoder: geocoder},
		Tokens:       tokens,
		AdminKey:     cfg.AdminKey,
		LogWriter:    logWriter,
		LoginLimiter: middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute),
	})

	// Wrap with CORS
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           middleware.EnableCORS(cfg.CORSOrigin, r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logrus.WithFields(logrus.Fields{"addr": srv.Addr, "store": cfg.StoreDriver}).Info("🚀 Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("HTTP server stopped")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
}

func openStore(cfg *config.Config) (store.ShipmentStore, func()) {
	if cfg.StoreDriver == config.StoreMemory {
		logrus.Warn("Using in-memory store; records are lost on restart")
		return store.NewMemoryStore(), func() {}
	}

	// Connect to the database
	db, err := config.OpenDB(cfg.DB)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	return store.NewGormStore(db), func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
