// Package memory provides in-memory implementations of store interfaces.
// The DeliveryStore implementation uses a map[string]*Delivery with
// sync.RWMutex for thread-safe CRUD operations. It is suitable for examples,
// testing, and demos; production anchors implement escrowconnect.DeliveryStore
// against their own database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	escrowconnect "github.com/stellar-connect/escrow-go"
	"github.com/stellar-connect/escrow-go/anchor"
	"github.com/stellar-connect/escrow-go/errors"
)

// DeliveryStore is an in-memory implementation of escrowconnect.DeliveryStore.
// It stores deliveries in a map with thread-safe access via sync.RWMutex.
// All deliveries are keyed by their ID field. Status updates are validated
// against the delivery lifecycle state machine.
type DeliveryStore struct {
	deliveries map[string]*escrowconnect.Delivery
	mu         sync.RWMutex
}

// NewDeliveryStore creates a new in-memory delivery store.
func NewDeliveryStore() *DeliveryStore {
	return &DeliveryStore{
		deliveries: make(map[string]*escrowconnect.Delivery),
	}
}

// Save persists a new delivery record.
// Returns an error if a delivery with the same ID already exists.
func (s *DeliveryStore) Save(_ context.Context, d *escrowconnect.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deliveries[d.ID]; exists {
		return errors.NewAnchorError(errors.STORE_ERROR,
			fmt.Sprintf("delivery %s already exists", d.ID), nil)
	}

	copied := *d
	s.deliveries[d.ID] = &copied
	return nil
}

// FindByID retrieves a delivery by its unique identifier.
func (s *DeliveryStore) FindByID(_ context.Context, id string) (*escrowconnect.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.deliveries[id]
	if !exists {
		return nil, errors.NewAnchorError(errors.STORE_ERROR,
			fmt.Sprintf("delivery %s not found", id), nil)
	}

	copied := *d
	return &copied, nil
}

// FindByRecipient returns all deliveries addressed to a Stellar account,
// ordered by creation time descending.
func (s *DeliveryStore) FindByRecipient(_ context.Context, account string) ([]*escrowconnect.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*escrowconnect.Delivery
	for _, d := range s.deliveries {
		if d.Recipient == account {
			copied := *d
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// FindByEscrowAccount retrieves the delivery whose escrow account has the
// given identifier.
func (s *DeliveryStore) FindByEscrowAccount(_ context.Context, escrowAccountID string) (*escrowconnect.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.deliveries {
		if d.EscrowAccount == escrowAccountID {
			copied := *d
			return &copied, nil
		}
	}
	return nil, errors.NewAnchorError(errors.STORE_ERROR,
		fmt.Sprintf("no delivery for escrow account %s", escrowAccountID), nil)
}

// UpdateStatus transitions a delivery to a new status. Illegal lifecycle
// transitions are rejected with TRANSITION_INVALID.
func (s *DeliveryStore) UpdateStatus(_ context.Context, id string, status escrowconnect.DeliveryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, exists := s.deliveries[id]
	if !exists {
		return errors.NewAnchorError(errors.STORE_ERROR,
			fmt.Sprintf("delivery %s not found", id), nil)
	}
	if err := anchor.ValidateTransition(d.Status, status); err != nil {
		return err
	}

	d.Status = status
	d.UpdatedAt = time.Now()
	return nil
}

// Compile-time interface check
var _ escrowconnect.DeliveryStore = (*DeliveryStore)(nil)
