package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbrook/beacon/internal/clock"
	"github.com/mbrook/beacon/internal/config"
	"github.com/mbrook/beacon/internal/logging"
	"github.com/mbrook/beacon/internal/metrics"
	"github.com/mbrook/beacon/internal/store"
	"github.com/mbrook/beacon/internal/stream"
	"github.com/mbrook/beacon/internal/web"

	"github.com/mbrook/beacon/internal/auth"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogJSON, cfg.LogDebug)

	log.Info("beacon starting", "version", version,
		"max_clients", cfg.MaxClients, "max_history", cfg.MaxHistory,
		"idle_timeout", cfg.IdleTimeout, "chunk_delay", cfg.ChunkDelay)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		secret = ephemeralSecret()
		log.Warn("BEACON_TOKEN_SECRET not set; using an ephemeral secret, tokens will not survive a restart")
	}

	authSvc := auth.NewService(auth.ServiceConfig{
		Users:    db,
		Log:      log.Logger,
		Secret:   secret,
		TokenTTL: cfg.TokenTTL,
	})
	if cfg.AdminPassword != "" {
		if err := authSvc.Bootstrap(cfg.AdminUser, cfg.AdminPassword); err != nil {
			log.Error("admin bootstrap failed", "error", err)
			os.Exit(1)
		}
	} else if n, err := db.UserCount(); err == nil && n == 0 {
		log.Warn("no users exist and BEACON_ADMIN_PASSWORD is not set; authenticated streaming is unavailable")
	}

	hub := stream.New(stream.Config{
		MaxClients:  cfg.MaxClients,
		MaxHistory:  cfg.MaxHistory,
		IdleTimeout: cfg.IdleTimeout,
		ChunkDelay:  cfg.ChunkDelay,
		Clock:       clock.Real{},
		Log:         log.Logger,
	})

	srv := web.NewServer(web.Dependencies{
		Hub:  hub,
		Auth: authSvc,
		Log:  log.Logger,
	})

	if cfg.MetricsTextfile != "" {
		go metricsTextfileLoop(ctx, cfg.MetricsTextfile, log)
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err)
		}
	}()

	if err := srv.ListenAndServe(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("beacon stopped")
}

// ephemeralSecret generates a random signing secret for the current process.
func ephemeralSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return []byte(hex.EncodeToString(b))
}

// metricsTextfileLoop periodically exports beacon_ metrics for the
// node_exporter textfile collector.
func metricsTextfileLoop(ctx context.Context, path string, log *logging.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := metrics.WriteTextfile(path); err != nil {
				log.Warn("metrics textfile write failed", "path", path, "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
