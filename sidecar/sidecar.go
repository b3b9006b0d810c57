// Package sidecar stores the rejection reasons that the ledger does not persist.
//
// The default file backend is local to one machine, like the browser storage it
// stands in for: a reason written here is invisible to any other server unless
// the operator opts into a shared backend (redis or sqlite on a shared volume).
package sidecar

import (
	"context"
	"fmt"

	"github.com/safwentrabelsi/civilchain-server/config"
)

// Store is a key-value store of rejection reasons keyed by request id.
type Store interface {
	All(ctx context.Context) (map[uint64]string, error)
	Put(ctx context.Context, id uint64, reason string) error
	Close() error
}

// Key under which the reasons are kept, shared by every backend.
const Key = "rejectionReasons"

// Open returns the backend selected in the configuration.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.SidecarBackend() {
	case "file":
		return NewFileStore(cfg.SidecarPath()), nil
	case "redis":
		return NewRedisStore(ctx, cfg.RedisAddr())
	case "sqlite":
		return OpenSQLStore(cfg.SidecarPath())
	default:
		return nil, fmt.Errorf("unsupported sidecar backend %q", cfg.SidecarBackend())
	}
}
