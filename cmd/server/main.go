package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/agenthands/adb-query-runner/internal/config"
	"github.com/agenthands/adb-query-runner/internal/core"
	"github.com/agenthands/adb-query-runner/internal/core/export"
	"github.com/agenthands/adb-query-runner/internal/cytoscape"
	"github.com/agenthands/adb-query-runner/internal/driver"
	"github.com/agenthands/adb-query-runner/internal/logging"
	"github.com/agenthands/adb-query-runner/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Invalid log configuration: %v", err)
	}

	ctx := context.Background()
	d, err := driver.New(ctx, cfg.Store, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize query executor")
	}
	defer d.Close(ctx)

	client := cytoscape.NewClient(cfg.Cytoscape, logger)
	exporter := export.New(client, export.OptionsFromConfig(cfg.Cytoscape), logger)
	runner := core.NewRunner(d, exporter, time.Duration(cfg.Pipeline.RequestTimeoutSeconds)*time.Second, logger)

	srv := server.NewServer(cfg, runner, logger)
	r := srv.SetupRouter()

	logger.WithFields(logrus.Fields{
		"port":    cfg.Server.Port,
		"store":   cfg.Store.Kind,
		"queries": len(cfg.Queries),
	}).Info("Starting server")
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server stopped")
	}
}
