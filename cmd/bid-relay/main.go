package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bid-relay/internal/api/handlers"
	apimiddleware "bid-relay/internal/api/middleware"
	"bid-relay/internal/config"
	"bid-relay/internal/infrastructure/mysql"
	relayredis "bid-relay/internal/infrastructure/redis"
	"bid-relay/internal/infrastructure/store"
	"bid-relay/internal/infrastructure/stream"
	"bid-relay/internal/services"
	"bid-relay/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
)

func main() {
	log := logger.New()
	log.Info("Starting bid relay service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log.Info("Configuration loaded", "config", cfg.GetConfigString())

	// Core components
	recordStore := store.NewClient(cfg.Store.BaseURL, cfg.Store.Timeout, log)
	registry := stream.NewRegistry(cfg.Stream.BufferSize, log)
	validator := services.NewBidValidator(cfg.Bidding.MaxBid)
	intake := services.NewBidIntake(recordStore, validator, registry, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Optional cross-instance relay over Redis pub/sub
	var relayCancel context.CancelFunc
	if cfg.Relay.Enabled {
		rdb := redisClient.NewClient(&redisClient.Options{
			Addr:     cfg.Relay.Address,
			Password: cfg.Relay.Password,
			DB:       cfg.Relay.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		log.Info("Connected to Redis", "address", cfg.Relay.Address)

		intake.SetEventPublisher(relayredis.NewEventPublisher(rdb, cfg.Instance.ID))

		subscriber := relayredis.NewEventSubscriber(rdb, cfg.Instance.ID, log)
		var subCtx context.Context
		subCtx, relayCancel = context.WithCancel(context.Background())
		go func() {
			if err := subscriber.Run(subCtx, registry); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Peer update subscriber failed", "error", err)
			}
		}()
	}

	// Optional local bid history archive in MySQL
	bidHandler := handlers.NewBidHandler(intake, recordStore, log)
	if cfg.Archive.Enabled {
		db, err := sql.Open("mysql", cfg.Archive.DSN)
		if err != nil {
			log.Error("Failed to open MySQL connection", "error", err)
			os.Exit(1)
		}
		defer func(db *sql.DB) {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}(db)

		db.SetMaxOpenConns(cfg.Archive.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Archive.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Archive.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			log.Error("Failed to ping MySQL", "error", err)
			os.Exit(1)
		}
		log.Info("Connected to MySQL")

		archive := mysql.NewBidArchive(db)
		intake.SetArchive(archive)
		bidHandler.SetArchive(archive)
	}

	// API server: bid intake, history, health
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestedWith,
		},
		MaxAge: 86400,
	}))

	e.POST("/bid/:auctionId", bidHandler.PlaceBid)
	e.GET("/bid/:auctionId/history", bidHandler.GetBidHistory)
	e.GET("/health", func(c echo.Context) error {
		auctions, subscribers := registry.Counts()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"service":     "bid-relay",
			"auctions":    auctions,
			"subscribers": subscribers,
			"timestamp":   time.Now().Format(time.RFC3339),
		})
	})

	// Stream server: long-lived SSE and WebSocket subscriptions live on their
	// own listener so API middleware never touches them
	sseHandler := stream.NewSSEHandler(registry, cfg.Stream.KeepAlive, log)
	wsHandler := stream.NewWSHandler(registry, log)

	router := mux.NewRouter()
	router.Use(apimiddleware.CORS)
	router.HandleFunc("/events/{auctionId}", sseHandler.HandleEvents).Methods(http.MethodGet)
	router.HandleFunc("/ws/auction/{auctionID}", wsHandler.HandleConnection)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	streamServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Stream.Host, cfg.Stream.Port),
		Handler: router,
	}

	// Registry stats heartbeat
	statsCron := cron.New()
	statsCron.AddFunc("@every 1m", func() {
		auctions, subscribers := registry.Counts()
		log.Info("Registry stats", "auctions", auctions, "subscribers", subscribers)
	})
	statsCron.Start()

	go func() {
		apiAddr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		log.Info("Starting API server", "address", apiAddr)
		if err := e.Start(apiAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("API server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		log.Info("Starting stream server", "address", streamServer.Addr)
		if err := streamServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Stream server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bid relay...")

	statsCron.Stop()
	if relayCancel != nil {
		relayCancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("API server forced to shutdown", "error", err)
	}
	if err := streamServer.Shutdown(shutdownCtx); err != nil {
		// Open event streams never finish on their own; cut them loose.
		log.Warn("Stream server still has open subscriptions, closing", "error", err)
		streamServer.Close()
	}

	log.Info("Bid relay stopped")
}
