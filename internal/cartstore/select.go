package cartstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/boutique/cartservice/internal/config"
	apperrors "github.com/boutique/cartservice/internal/errors"
)

// Select picks the backend from the environment: a non-empty REDIS_ADDR
// yields a durable Redis store, anything else the in-memory store. The
// returned store is constructed but not initialized, and the address is not
// validated here.
func Select(src config.Source) (Kind, Store) {
	if addr := src.Get(config.KeyRedisAddr); addr != "" {
		return KindDurable, NewRedisStore(addr)
	}
	return KindEphemeral, NewLocalStore()
}

// Initialize runs the store's setup and blocks until it completes. A zero
// timeout waits indefinitely. Any failure, including the timeout expiring,
// is returned as a fatal initialization error; there is no fallback to
// another backend.
func Initialize(ctx context.Context, kind Kind, store Store, log *slog.Logger, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- store.Initialize(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		return apperrors.NewInitializationError(kind.String(), err)
	}

	log.Info("Storage backend initialized", "backend", kind.String())
	return nil
}
