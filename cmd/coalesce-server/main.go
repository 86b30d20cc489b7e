package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/coalesce-dev/coalesce/internal/config"
	"github.com/coalesce-dev/coalesce/internal/identity"
	"github.com/coalesce-dev/coalesce/internal/metrics"
	"github.com/coalesce-dev/coalesce/internal/server"
	"github.com/coalesce-dev/coalesce/internal/storage"
	"github.com/coalesce-dev/coalesce/internal/storage/postgres"
	"github.com/coalesce-dev/coalesce/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional; environment is used otherwise)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	svc := identity.New(store, metrics.New(reg), identity.Options{
		MaxTxAttempts: cfg.Identity.MaxTxAttempts,
	})

	addr, err := server.Start(ctx, cfg, svc, reg)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("coalesce (%s engine) listening at http://%s", cfg.Storage.Engine, addr)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// openStore builds the store the config selects.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Engine {
	case config.EnginePostgres:
		return postgres.NewContactStore(cfg.Storage.PostgresDSN)
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, err
		}
		return sqlite.NewContactStore(filepath.Join(cfg.Storage.DataPath, "coalesce.db"))
	}
}
