// Command coalesce-setup verifies a coalesce installation: it loads the
// configuration, opens the configured storage engine, applies the schema and
// reports whether the service would come up cleanly.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coalesce-dev/coalesce/internal/config"
	"github.com/coalesce-dev/coalesce/internal/storage"
	"github.com/coalesce-dev/coalesce/internal/storage/postgres"
	"github.com/coalesce-dev/coalesce/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional; environment is used otherwise)")
	flag.Parse()

	fmt.Println("Coalesce Setup Verification")
	fmt.Println("===========================")
	fmt.Println()

	statusOK := true

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Printf("Config:    ✗ %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Config:    ✗ %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config:    ✓ engine=%s listen=%s\n", cfg.Storage.Engine, cfg.Addr())

	store, err := openStore(cfg)
	if err != nil {
		fmt.Printf("Storage:   ✗ %v\n", err)
		statusOK = false
	} else {
		defer store.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			fmt.Printf("Storage:   ✗ ping failed: %v\n", err)
			statusOK = false
		} else {
			fmt.Println("Storage:   ✓ reachable, schema applied")
		}
	}

	fmt.Println()
	if !statusOK {
		fmt.Println("Verification FAILED")
		os.Exit(1)
	}
	fmt.Println("Verification passed")
}

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
