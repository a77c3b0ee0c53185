package ledger

import (
	"context"
	"fmt"

	"github.com/AhmedNaeem5575/insta-story/pkg/config"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Logger logger.Logger
}

// New builds the ledger backend named by STORAGE_LEDGER_DRIVER. The file
// backend is the default; the Postgres pool is only created when asked for.
func New(opts Opts) (Repository, error) {
	switch opts.Config.Storage.LedgerDriver {
	case "", "file":
		return NewFileRepository(opts.Config.Storage.LedgerDir, opts.Logger)
	case "postgres":
		pool, err := newPool(opts)
		if err != nil {
			return nil, err
		}
		return NewPgxRepository(pool, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", opts.Config.Storage.LedgerDriver)
	}
}

func newPool(opts Opts) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), opts.Config.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	opts.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("failed to ping postgres: %w", err)
			}
			opts.Logger.Info("Connected to postgres")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

var Module = fx.Provide(New)
