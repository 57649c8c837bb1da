package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"beyondcare/internal/app"
	"beyondcare/internal/config"
	"beyondcare/internal/server"
	"beyondcare/internal/storage"
	"beyondcare/internal/util"
	"beyondcare/pkg/ai"
	"beyondcare/pkg/auth"
	"beyondcare/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	if sessionTTL == 0 {
		sessionTTL = auth.DefaultSessionTTL
	}

	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		log.Fatalf("failed to init blob storage: %v", err)
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, sessionTTL)
	if err != nil {
		log.Fatalf("failed to init token issuer: %v", err)
	}

	gateway := ai.NewClient(ai.Config{
		APIKey:           cfg.GeminiAPIKey,
		EndpointTemplate: cfg.GeminiEndpoint,
		Model:            cfg.GeminiModel,
	})
	if cfg.GeminiAPIKey == "" {
		slog.Warn("no AI API key configured, answering from local rules only")
	}

	appCore, err := app.New(app.Config{
		Store:  st,
		Blobs:  blobs,
		AI:     gateway,
		Tokens: tokens,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		PublicDir:                  cfg.PublicDir,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// let in-flight uploads drain before exiting
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}

func newBlobStore(cfg config.FileConfig) (storage.BlobStore, error) {
	if cfg.Storage == "minio" {
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return storage.NewDiskStore(cfg.UploadDir)
}
