// Package main resolves one action chain from the command line and prints the
// per-step probabilities.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gmtools/internal/config"
	"github.com/cory-johannsen/gmtools/internal/game/action"
	"github.com/cory-johannsen/gmtools/internal/game/attribute"
	"github.com/cory-johannsen/gmtools/internal/game/chain"
	"github.com/cory-johannsen/gmtools/internal/observability"
	"github.com/cory-johannsen/gmtools/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	actionsDir := flag.String("actions-dir", "", "load actions from this YAML directory instead of the database")
	entitiesFile := flag.String("entities", "", "load entities from this YAML file instead of the database")
	actionID := flag.String("action", "", "root action ID")
	sourceIDs := flag.String("source", "", "comma-separated source entity IDs")
	targetIDs := flag.String("target", "", "comma-separated target entity IDs")
	sourceOverride := flag.String("source-override", "", "manual source value for the root step")
	targetOverride := flag.String("target-override", "", "manual target value (difficulty) for the root step")
	flag.Parse()

	if *actionID == "" {
		fmt.Fprintln(os.Stderr, "usage: resolve -action <id> -source <ids> -target <ids> [-config path] [-actions-dir dir] [-entities file]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *actionsDir != "" {
		cfg.Engine.ActionsDir = *actionsDir
	}
	if *entitiesFile != "" {
		cfg.Engine.EntitiesFile = *entitiesFile
	}

	logger, err := observability.NewLogger(cfg.Logging, "resolve")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	overrides, err := rootOverrides(*sourceOverride, *targetOverride)
	if err != nil {
		logger.Fatal("parsing overrides", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	contribs, actions, closeFn, err := openSources(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("opening data sources", zap.Error(err))
	}
	defer closeFn()

	root, err := actions.FetchAction(ctx, *actionID)
	if err != nil {
		logger.Fatal("fetching root action", zap.String("action_id", *actionID), zap.Error(err))
	}

	exec := chain.NewExecutor(contribs, actions, logger,
		chain.WithMaxDepth(cfg.Engine.MaxChainDepth),
		chain.WithFetchTimeout(cfg.Engine.FetchTimeout),
	)
	res, err := exec.Resolve(ctx, root, splitIDs(*sourceIDs), splitIDs(*targetIDs), overrides)
	if err != nil {
		logger.Fatal("resolving chain", zap.Error(err))
	}
	if err := writeReport(os.Stdout, res); err != nil {
		logger.Fatal("writing report", zap.Error(err))
	}
	logger.Debug("resolution complete",
		zap.String("chain_id", res.ChainID),
		zap.Int("steps", len(res.Steps)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// openSources picks YAML or PostgreSQL for each data source. The returned
// close function is always non-nil.
func openSources(ctx context.Context, cfg config.Config, logger *zap.Logger) (attribute.Fetcher, action.Fetcher, func(), error) {
	var (
		contribs attribute.Fetcher
		actions  action.Fetcher
	)
	closeFn := func() {}

	if cfg.Engine.UsesDatabase() {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, closeFn, fmt.Errorf("connecting to database: %w", err)
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
			zap.String("database", cfg.Database.Name),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		closeFn = pool.Close
		if err := pool.Ready(ctx, 10*time.Second); err != nil {
			return nil, nil, closeFn, err
		}
		contribs = pool.Contributions()
		actions = pool.Actions()
	}

	if cfg.Engine.ActionsDir != "" {
		reg, err := action.LoadDirectory(cfg.Engine.ActionsDir)
		if err != nil {
			return nil, nil, closeFn, err
		}
		for _, d := range reg.CheckTriggers() {
			logger.Warn("action triggers an unknown action", zap.String("trigger", d))
		}
		logger.Info("actions loaded", zap.Int("count", len(reg.All())), zap.String("dir", cfg.Engine.ActionsDir))
		actions = reg
	}
	if cfg.Engine.EntitiesFile != "" {
		store, err := attribute.LoadEntityFile(cfg.Engine.EntitiesFile)
		if err != nil {
			return nil, nil, closeFn, err
		}
		contribs = store
	}
	return contribs, actions, closeFn, nil
}

func rootOverrides(source, target string) (chain.Overrides, error) {
	src, err := chain.ParseOverride(source != "", source)
	if err != nil {
		return nil, fmt.Errorf("source override: %w", err)
	}
	tgt, err := chain.ParseOverride(target != "", target)
	if err != nil {
		return nil, fmt.Errorf("target override: %w", err)
	}
	if !src.Active && !tgt.Active {
		return nil, nil
	}
	return chain.Overrides{chain.RootKey: {Source: src, Target: tgt}}, nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
