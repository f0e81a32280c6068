package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/plantomart/plantomart-backend/pkg/config"
	"github.com/plantomart/plantomart-backend/pkg/db"
	"github.com/plantomart/plantomart-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations on boot, but only in the dev environment with
// PLANTOMART_AUTO_MIGRATE set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"driver": client.Driver(), "dir": DefaultDir})
	started := time.Now()
	if err := Run(ctx, sqlDB, client.Driver(), DefaultDir, "up", nil); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	logg.Info(logg.WithField(ctx, "duration_ms", time.Since(started).Milliseconds()), "migrate.dev_autorun_done")
	return nil
}
