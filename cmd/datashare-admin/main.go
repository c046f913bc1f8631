package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/datashare-api/internal/cli"
	"github.com/noah-isme/datashare-api/internal/server"
	"github.com/noah-isme/datashare-api/pkg/config"
	"github.com/noah-isme/datashare-api/pkg/database"
	"github.com/noah-isme/datashare-api/pkg/logger"
)

func main() {
	root := cli.NewRootCommand(loadCore)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}

func loadCore() (*server.Core, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		logr = zap.NewNop()
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	release := func() {
		_ = logr.Sync()
		_ = db.Close()
	}
	return server.NewCore(cfg, db, logr), release, nil
}
