package cartstore

import (
	"context"
	"sort"
	"sync"
)

// LocalStore keeps carts in process memory. Contents are lost on restart.
type LocalStore struct {
	mu    sync.RWMutex
	carts map[string]map[string]int32
}

// NewLocalStore creates an uninitialized in-memory store.
func NewLocalStore() *LocalStore {
	return &LocalStore{}
}

func (s *LocalStore) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.carts != nil {
		return ErrAlreadyInitialized
	}
	s.carts = make(map[string]map[string]int32)
	return nil
}

func (s *LocalStore) AddItem(ctx context.Context, userID, productID string, quantity int32) error {
	if err := validateItem(userID, productID, quantity); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.carts == nil {
		return ErrNotInitialized
	}
	items, ok := s.carts[userID]
	if !ok {
		items = make(map[string]int32)
		s.carts[userID] = items
	}
	if int64(items[productID])+int64(quantity) > MaxQuantity {
		return quantityOverflow(productID)
	}
	items[productID] += quantity
	return nil
}

func (s *LocalStore) GetCart(ctx context.Context, userID string) (Cart, error) {
	if err := validateUser(userID); err != nil {
		return Cart{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.carts == nil {
		return Cart{}, ErrNotInitialized
	}
	cart := Cart{UserID: userID, Items: []Item{}}
	for productID, qty := range s.carts[userID] {
		cart.Items = append(cart.Items, Item{ProductID: productID, Quantity: qty})
	}
	sort.Slice(cart.Items, func(i, j int) bool {
		return cart.Items[i].ProductID < cart.Items[j].ProductID
	})
	return cart, nil
}

func (s *LocalStore) EmptyCart(ctx context.Context, userID string) error {
	if err := validateUser(userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.carts == nil {
		return ErrNotInitialized
	}
	delete(s.carts, userID)
	return nil
}

func (s *LocalStore) Close() error {
	return nil
}
