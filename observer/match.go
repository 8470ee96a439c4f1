package observer

import (
	"context"

	escrowconnect "github.com/stellar-connect/escrow-go"
	"github.com/stellar-connect/escrow-go/anchor"
	"github.com/stellar-connect/escrow-go/errors"
)

// RecordDiscovery matches a discovered escrow account back to its delivery
// record and advances the lifecycle to discovered. Intended for deployments
// where the watcher runs with access to the delivery store (demos, custodial
// wallets operated by the anchor itself).
//
// Each discovery record is used exactly once: a delivery that already left the
// issued state is rejected with TRANSITION_INVALID.
func RecordDiscovery(ctx context.Context, store escrowconnect.DeliveryStore, escrowAccountID string) (*escrowconnect.Delivery, error) {
	delivery, err := store.FindByEscrowAccount(ctx, escrowAccountID)
	if err != nil {
		return nil, errors.NewObserverError(errors.POLL_FAILED, "no delivery for discovered account "+escrowAccountID, err)
	}
	if err := anchor.ValidateTransition(delivery.Status, escrowconnect.StatusDiscovered); err != nil {
		return nil, err
	}
	if err := store.UpdateStatus(ctx, delivery.ID, escrowconnect.StatusDiscovered); err != nil {
		return nil, err
	}
	delivery.Status = escrowconnect.StatusDiscovered
	return delivery, nil
}
