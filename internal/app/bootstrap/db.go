// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"

	"github.com/blokhub/blokhub/internal/app/system/indexes"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// EnsureSchema reconciles the collection indexes at startup. The unique
// composite indexes created here back the at-most-one-row invariants the
// stores rely on, so startup fails hard if they cannot be built.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("index reconciliation failed", zap.Error(err))
		return err
	}
	return nil
}
