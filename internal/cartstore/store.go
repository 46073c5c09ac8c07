// Package cartstore holds the cart service's state backends and the logic
// that chooses and initializes one of them at startup.
package cartstore

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/redis/go-redis/v9"
)

// Kind identifies which backend was selected. It is fixed for the life of
// the process.
type Kind int

const (
	KindEphemeral Kind = iota
	KindDurable
)

func (k Kind) String() string {
	switch k {
	case KindDurable:
		return "durable"
	case KindEphemeral:
		return "ephemeral"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	ErrAlreadyInitialized = errors.New("cartstore: backend already initialized")
	ErrNotInitialized     = errors.New("cartstore: backend not initialized")
	ErrInvalidArgument    = errors.New("cartstore: invalid argument")
)

// ConnectionError is returned when a durable backend cannot reach its server.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cartstore: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Item is a single product line in a cart.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

// Cart is a user's set of items.
type Cart struct {
	UserID string `json:"user_id"`
	Items  []Item `json:"items"`
}

// Store defines the interface for cart storage backends.
type Store interface {
	// Initialize prepares the backend for use. It must be called exactly
	// once, before any other method.
	Initialize(ctx context.Context) error

	// AddItem adds quantity units of productID to the user's cart.
	AddItem(ctx context.Context, userID, productID string, quantity int32) error

	// GetCart returns the user's cart. An unknown user has an empty cart.
	GetCart(ctx context.Context, userID string) (Cart, error)

	// EmptyCart removes every item from the user's cart.
	EmptyCart(ctx context.Context, userID string) error

	Close() error
}

// Instrumentable is implemented by backends that expose a client connection
// which tracing instrumentation can hook into.
type Instrumentable interface {
	ConnectionHandle() redis.UniversalClient
}

// MaxQuantity is the largest quantity a single cart line may hold.
const MaxQuantity = math.MaxInt32

func quantityOverflow(productID string) error {
	return fmt.Errorf("%w: quantity for %s would exceed %d", ErrInvalidArgument, productID, MaxQuantity)
}

func validateItem(userID, productID string, quantity int32) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidArgument)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidArgument, quantity)
	}
	return nil
}

func validateUser(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	return nil
}
