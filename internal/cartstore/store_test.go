package cartstore

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boutique/cartservice/internal/config"
	apperrors "github.com/boutique/cartservice/internal/errors"
	"github.com/boutique/cartservice/internal/logger"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantKind Kind
	}{
		{name: "absent address", env: nil, wantKind: KindEphemeral},
		{name: "empty address", env: map[string]string{config.KeyRedisAddr: ""}, wantKind: KindEphemeral},
		{name: "host and port", env: map[string]string{config.KeyRedisAddr: "cache:6379"}, wantKind: KindDurable},
		{name: "redis url", env: map[string]string{config.KeyRedisAddr: "redis://cache:6379/0"}, wantKind: KindDurable},
		{name: "garbage address", env: map[string]string{config.KeyRedisAddr: "not an address"}, wantKind: KindDurable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, store := Select(config.FromMap(tt.env))
			require.NotNil(t, store)
			assert.Equal(t, tt.wantKind, kind)

			switch kind {
			case KindDurable:
				rs, ok := store.(*RedisStore)
				require.True(t, ok, "durable kind must construct a RedisStore")
				assert.Equal(t, tt.env[config.KeyRedisAddr], rs.Addr())
			case KindEphemeral:
				_, ok := store.(*LocalStore)
				assert.True(t, ok, "ephemeral kind must construct a LocalStore")
			}
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "durable", KindDurable.String())
	assert.Equal(t, "ephemeral", KindEphemeral.String())
	assert.Equal(t, "Kind(7)", Kind(7).String())
}

func TestOnlyDurableIsInstrumentable(t *testing.T) {
	var s Store = NewRedisStore("cache:6379")
	_, ok := s.(Instrumentable)
	assert.True(t, ok)

	s = NewLocalStore()
	_, ok = s.(Instrumentable)
	assert.False(t, ok)
}

func TestInitializeLocal(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("development", &buf)

	kind, store := Select(config.FromMap(nil))
	require.NoError(t, Initialize(context.Background(), kind, store, log, 0))

	assert.Equal(t, 1, strings.Count(buf.String(), "Storage backend initialized"))
	assert.Contains(t, buf.String(), "backend=ephemeral")
}

func TestInitializeDurable(t *testing.T) {
	mr := miniredis.RunT(t)

	var buf bytes.Buffer
	log := logger.NewWithWriter("development", &buf)

	kind, store := Select(config.FromMap(map[string]string{config.KeyRedisAddr: mr.Addr()}))
	defer store.Close()

	require.Equal(t, KindDurable, kind)
	require.NoError(t, Initialize(context.Background(), kind, store, log, time.Second))
	assert.Equal(t, 1, strings.Count(buf.String(), "Storage backend initialized"))
	assert.Contains(t, buf.String(), "backend=durable")
}

func TestInitializeDurableUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	var buf bytes.Buffer
	log := logger.NewWithWriter("development", &buf)

	kind, store := Select(config.FromMap(map[string]string{config.KeyRedisAddr: addr}))
	defer store.Close()

	err = Initialize(context.Background(), kind, store, log, 0)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrorTypeInitialization, appErr.Type)
	assert.True(t, appErr.IsFatal())

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, addr, connErr.Addr)

	assert.NotContains(t, buf.String(), "Storage backend initialized")
}

func TestInitializeDurableMalformedURL(t *testing.T) {
	kind, store := Select(config.FromMap(map[string]string{config.KeyRedisAddr: "redis://[bad"}))
	require.Equal(t, KindDurable, kind)

	err := Initialize(context.Background(), kind, store, logger.Discard(), 0)

	var connErr *ConnectionError
	assert.True(t, errors.As(err, &connErr))
}

func TestRedisInitializeDialsOnce(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var accepted atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			conn.Close()
		}
	}()

	store := NewRedisStore(ln.Addr().String())
	defer store.Close()

	err = store.Initialize(context.Background())
	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, int32(1), accepted.Load())

	_, err = store.GetCart(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestParseRedisAddrDisablesRetries(t *testing.T) {
	for _, addr := range []string{"cache:6379", "redis://cache:6379/0"} {
		opts, err := ParseRedisAddr(addr)
		require.NoError(t, err)
		assert.Equal(t, -1, opts.MaxRetries, addr)
		assert.Equal(t, 1, opts.DialerRetries, addr)
	}
}

type blockingStore struct {
	*LocalStore
	release chan struct{}
}

func (s *blockingStore) Initialize(ctx context.Context) error {
	<-s.release
	return nil
}

func TestInitializeTimeoutIsFatal(t *testing.T) {
	store := &blockingStore{LocalStore: NewLocalStore(), release: make(chan struct{})}
	defer close(store.release)

	err := Initialize(context.Background(), KindDurable, store, logger.Discard(), 20*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrorTypeInitialization, appErr.Type)
}

func TestInitializeTwiceFails(t *testing.T) {
	mr := miniredis.RunT(t)

	stores := map[string]Store{
		"local": NewLocalStore(),
		"redis": NewRedisStore(mr.Addr()),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			require.NoError(t, store.Initialize(context.Background()))
			assert.ErrorIs(t, store.Initialize(context.Background()), ErrAlreadyInitialized)
		})
	}
}

func TestStoreOperations(t *testing.T) {
	mr := miniredis.RunT(t)

	stores := map[string]func() Store{
		"local": func() Store { return NewLocalStore() },
		"redis": func() Store { return NewRedisStore(mr.Addr()) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore()
			defer store.Close()

			_, err := store.GetCart(ctx, "u1")
			assert.ErrorIs(t, err, ErrNotInitialized)

			require.NoError(t, store.Initialize(ctx))

			cart, err := store.GetCart(ctx, "u1")
			require.NoError(t, err)
			assert.Empty(t, cart.Items)

			require.NoError(t, store.AddItem(ctx, "u1", "OLJCESPC7Z", 2))
			require.NoError(t, store.AddItem(ctx, "u1", "66VCHSJNUP", 1))
			require.NoError(t, store.AddItem(ctx, "u1", "OLJCESPC7Z", 3))
			require.NoError(t, store.AddItem(ctx, "u2", "OLJCESPC7Z", 1))

			cart, err = store.GetCart(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, Cart{
				UserID: "u1",
				Items: []Item{
					{ProductID: "66VCHSJNUP", Quantity: 1},
					{ProductID: "OLJCESPC7Z", Quantity: 5},
				},
			}, cart)

			require.NoError(t, store.EmptyCart(ctx, "u1"))
			cart, err = store.GetCart(ctx, "u1")
			require.NoError(t, err)
			assert.Empty(t, cart.Items)

			cart, err = store.GetCart(ctx, "u2")
			require.NoError(t, err)
			assert.Len(t, cart.Items, 1)
		})
	}
}

func TestAddItemRejectsQuantityOverflow(t *testing.T) {
	mr := miniredis.RunT(t)

	stores := map[string]func() Store{
		"local": func() Store { return NewLocalStore() },
		"redis": func() Store { return NewRedisStore(mr.Addr()) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore()
			defer store.Close()
			require.NoError(t, store.Initialize(ctx))

			require.NoError(t, store.AddItem(ctx, "big", "OLJCESPC7Z", math.MaxInt32-1))
			assert.ErrorIs(t, store.AddItem(ctx, "big", "OLJCESPC7Z", 2), ErrInvalidArgument)
			require.NoError(t, store.AddItem(ctx, "big", "OLJCESPC7Z", 1))

			cart, err := store.GetCart(ctx, "big")
			require.NoError(t, err)
			assert.Equal(t, []Item{{ProductID: "OLJCESPC7Z", Quantity: MaxQuantity}}, cart.Items)
		})
	}
}

func TestStoreValidation(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore()
	require.NoError(t, store.Initialize(ctx))

	assert.ErrorIs(t, store.AddItem(ctx, "", "p", 1), ErrInvalidArgument)
	assert.ErrorIs(t, store.AddItem(ctx, "u", "", 1), ErrInvalidArgument)
	assert.ErrorIs(t, store.AddItem(ctx, "u", "p", 0), ErrInvalidArgument)
	assert.ErrorIs(t, store.EmptyCart(ctx, ""), ErrInvalidArgument)

	_, err := store.GetCart(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
