package main

import (
	"fmt"
	"os"

	"github.com/dekalouis/v0-drive/infrastructure/postgres"
	"github.com/dekalouis/v0-drive/pkg/config"
	"github.com/dekalouis/v0-drive/pkg/logger"
)

// Standalone migration runner for deploy pipelines. It always exits 0 so
// a degraded database (reachable but without pgvector) does not block a
// rollout; the API reports the degradation on /health instead.
func main() {
	if err := logger.Init("logs", true); err != nil {
		fmt.Printf("Warning: Failed to initialize logger: %v\n", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.StartupError("migrate_config", "Failed to load configuration", err, nil)
		os.Exit(0)
	}

	db, err := postgres.NewDatabase(cfg.Database.DSN())
	if err != nil {
		logger.StartupError("migrate_connect", "Failed to connect to database", err, nil)
		os.Exit(0)
	}

	if err := postgres.Migrate(db, cfg.Gemini.EmbeddingDim); err != nil {
		logger.StartupError("migrate_run", "Migrations failed", err, nil)
		os.Exit(0)
	}

	logger.Startup("migrate_done", "Migrations applied", map[string]interface{}{
		"vector_available": postgres.EnsureVectorInfra(db, cfg.Gemini.EmbeddingDim) == nil,
	})
}
