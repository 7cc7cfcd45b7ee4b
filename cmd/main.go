package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"roomchat/backend/internal/api/handler"
	"roomchat/backend/internal/auth"
	"roomchat/backend/internal/chathub"
	"roomchat/backend/internal/config"
	"roomchat/backend/internal/filestore"
	"roomchat/backend/internal/retention"
	"roomchat/backend/internal/storage"
	"roomchat/backend/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func setupDependencies(ctx context.Context, cfg config.Config) (*storage.Service, filestore.Store, func()) {
	db, err := storage.OpenPostgres(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal(err)
	}

	rdb, err := storage.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal(err)
	}

	s := storage.NewStorageService(db, rdb)
	if err := s.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	files, closeFiles, err := filestore.Open(ctx, cfg.NATSURL, cfg.NATSBucket, cfg.UploadDir)
	if err != nil {
		log.Fatalf("Failed to open file store: %v", err)
	}

	cleanup := func() {
		closeFiles()
		if rdb != nil {
			rdb.Close()
		}
	}

	log.Println("Database connection established, migrations complete.")
	return s, files, cleanup
}

func main() {
	log.Println("Starting room chat backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, files, cleanup := setupDependencies(ctx, cfg)
	defer cleanup()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiresIn)

	opts := chathub.Options{
		MaxMessageLength: cfg.MaxMessageLength,
		Users:            s,
		RelayBackoff:     cfg.RelayBackoff,
	}
	if s.Redis != nil {
		opts.Relay = s
	}
	hub := chathub.NewManagerService(s, tokens, opts)
	uploads := upload.NewPipeline(files, s, hub.Router, hub.Router, cfg.MaxUploadBytes)
	sweeper := retention.NewSweeper(s, files, cfg.SweepInterval, cfg.AttachmentRetention, cfg.SweepBackoff)

	go hub.Run(ctx)
	go sweeper.Run(ctx)

	r := gin.Default()
	handler.NewHandler(hub, s, tokens, uploads, files, cfg).RegisterRoutes(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Minute,
		WriteTimeout:   10 * time.Minute,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("%s listening on %s", cfg.AppName, cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: HTTP shutdown: %v", err)
	}
	if err := hub.Shutdown(5 * time.Second); err != nil {
		log.Printf("ERROR: hub shutdown: %v", err)
	}
}
