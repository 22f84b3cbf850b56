// Package main copies YAML actions and entities into the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gmtools/internal/config"
	"github.com/cory-johannsen/gmtools/internal/importer"
	"github.com/cory-johannsen/gmtools/internal/observability"
	"github.com/cory-johannsen/gmtools/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	sourceDir := flag.String("source", "", "content directory holding actions/ and entities.yaml")
	flag.Parse()

	if *sourceDir == "" {
		fmt.Fprintln(os.Stderr, "usage: import-content -source <dir> [-config path]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging, "import-content")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ready(ctx, 10*time.Second); err != nil {
		logger.Fatal("database not ready", zap.Error(err))
	}

	imp := importer.New(importer.NewYAMLSource(), pool.Actions(), pool.Contributions(), logger)
	sum, err := imp.Run(ctx, *sourceDir)
	if err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}
	fmt.Printf("imported %d action(s) and %d entities\n", sum.Actions, sum.Entities)
}
