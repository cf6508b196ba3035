package driver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/agenthands/adb-query-runner/internal/config"
	"github.com/agenthands/adb-query-runner/internal/core/model"
)

// QueryExecutor runs a query and returns the complete, ordered result set.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, query string, bindVars map[string]any) ([]model.Document, error)
	Close(ctx context.Context) error
}

// New builds the executor for cfg.Kind.
func New(ctx context.Context, cfg config.StoreConfig, logger *logrus.Logger) (QueryExecutor, error) {
	switch cfg.Kind {
	case config.StoreArangoDB, "":
		return NewArangoDriver(cfg, logger), nil
	case config.StoreBolt:
		d, err := NewBoltDriver(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported store kind: %s", cfg.Kind)
	}
}
