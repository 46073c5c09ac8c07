package cartstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists carts in Redis, one hash per user keyed by product id.
type RedisStore struct {
	addr     string
	client   *redis.Client
	parseErr error
	prefix   string

	attempted atomic.Bool
	verified  atomic.Bool
}

// addItemScript increments a cart line unless the result would exceed
// MaxQuantity, in which case it returns -1 and leaves the line unchanged.
var addItemScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
if cur + tonumber(ARGV[2]) > tonumber(ARGV[3]) then
	return -1
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
`)

// ParseRedisAddr parses a Redis address into client options. Both plain
// host:port and redis:// or rediss:// URLs are accepted. The returned
// options make a single dial and never retry a failed command.
func ParseRedisAddr(addr string) (*redis.Options, error) {
	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		var err error
		if opts, err = redis.ParseURL(addr); err != nil {
			return nil, err
		}
	}
	opts.MaxRetries = -1
	opts.DialerRetries = 1
	return opts, nil
}

// NewRedisStore creates a store for the server at addr. Nothing is dialled
// until Initialize; an unusable address is reported there as well.
func NewRedisStore(addr string) *RedisStore {
	s := &RedisStore{
		addr:   addr,
		prefix: "cart:",
	}

	opts, err := ParseRedisAddr(addr)
	if err != nil {
		s.parseErr = err
		return s
	}
	s.client = redis.NewClient(opts)
	return s
}

// Addr returns the address the store was configured with.
func (s *RedisStore) Addr() string {
	return s.addr
}

// ConnectionHandle exposes the underlying client for instrumentation.
func (s *RedisStore) ConnectionHandle() redis.UniversalClient {
	if s.client == nil {
		return nil
	}
	return s.client
}

// Initialize verifies the server is reachable with a single PING. It may
// only be called once; the store serves requests only if that PING succeeded.
func (s *RedisStore) Initialize(ctx context.Context) error {
	if !s.attempted.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}
	if s.parseErr != nil {
		return &ConnectionError{Addr: s.addr, Err: s.parseErr}
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &ConnectionError{Addr: s.addr, Err: err}
	}
	s.verified.Store(true)
	return nil
}

func (s *RedisStore) makeKey(userID string) string {
	return s.prefix + userID
}

func (s *RedisStore) ready() error {
	if !s.verified.Load() || s.client == nil {
		return ErrNotInitialized
	}
	return nil
}

func (s *RedisStore) AddItem(ctx context.Context, userID, productID string, quantity int32) error {
	if err := validateItem(userID, productID, quantity); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	n, err := addItemScript.Run(ctx, s.client, []string{s.makeKey(userID)}, productID, quantity, MaxQuantity).Int64()
	if err != nil {
		return fmt.Errorf("cartstore: add item: %w", err)
	}
	if n < 0 {
		return quantityOverflow(productID)
	}
	return nil
}

func (s *RedisStore) GetCart(ctx context.Context, userID string) (Cart, error) {
	if err := validateUser(userID); err != nil {
		return Cart{}, err
	}
	if err := s.ready(); err != nil {
		return Cart{}, err
	}

	fields, err := s.client.HGetAll(ctx, s.makeKey(userID)).Result()
	if err != nil {
		return Cart{}, fmt.Errorf("cartstore: get cart: %w", err)
	}

	cart := Cart{UserID: userID, Items: make([]Item, 0, len(fields))}
	for productID, raw := range fields {
		qty, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return Cart{}, fmt.Errorf("cartstore: corrupt quantity for %s: %w", productID, err)
		}
		cart.Items = append(cart.Items, Item{ProductID: productID, Quantity: int32(qty)})
	}
	sort.Slice(cart.Items, func(i, j int) bool {
		return cart.Items[i].ProductID < cart.Items[j].ProductID
	})
	return cart, nil
}

func (s *RedisStore) EmptyCart(ctx context.Context, userID string) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	if err := s.client.Del(ctx, s.makeKey(userID)).Err(); err != nil {
		return fmt.Errorf("cartstore: empty cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
