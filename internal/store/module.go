package store

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"marathonbot/internal/config"
)

// Module provides storage dependencies.
var Module = fx.Module("store",
	fx.Provide(NewStore),
)

// NewStoreParams holds dependencies for NewStore.
type NewStoreParams struct {
	fx.In
	Cfg    *config.Config
	Logger *zap.Logger
	LC     fx.Lifecycle
}

// NewStore opens the store and ties connection shutdown to the Fx lifecycle.
func NewStore(params NewStoreParams) (*Store, error) {
	s, err := Open(params.Cfg, params.Logger)
	if err != nil {
		return nil, err
	}

	params.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return s.Close()
		},
	})

	return s, nil
}
