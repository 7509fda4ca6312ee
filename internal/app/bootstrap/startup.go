// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/stratacms/internal/app/resources"
	"github.com/dalemusser/stratacms/internal/app/system/tasks"
	"github.com/dalemusser/stratacms/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// It applies the configured storage timeout, checks the embedded static
// dictionary and, when report_jobs_enabled is set, starts the integrity
// report jobs.
//
// Returning a non-nil error will abort startup and prevent the server from
// starting.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	// STRATACMS_TIMEOUT_* overrides win over storage_timeout.
	timeouts.Configure(timeouts.Config{Storage: appCfg.StorageTimeout})
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}

	if err := resources.Validate(); err != nil {
		logger.Error("static dictionary is invalid", zap.Error(err))
		return fmt.Errorf("static dictionary: %w", err)
	}
	logger.Info("static dictionary loaded", zap.Strings("languages", resources.StaticLanguages()))

	if appCfg.ReportJobsEnabled {
		startTaskRunner(deps.MongoDatabase, logger)
	}

	return nil
}

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner initializes and starts the background report jobs.
func startTaskRunner(db *mongo.Database, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	taskRunner.Register(tasks.DanglingReferenceJob(db, logger))
	taskRunner.Register(tasks.OrphanSectionJob(db, logger))

	taskRunner.Start()
	logger.Info("integrity report jobs started", zap.Strings("jobs", taskRunner.Names()))
}
