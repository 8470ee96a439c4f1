// Package anchor implements the issuing side of the escrow delivery protocol:
// issuer account setup, trustline-aware delivery, the four-operation escrow
// hand-off transaction, and the delivery lifecycle state machine.
package anchor

import (
	"fmt"

	escrowconnect "github.com/stellar-connect/escrow-go"
	"github.com/stellar-connect/escrow-go/errors"
)

// legalTransitions defines the allowed state transitions for deliveries.
// Each key is a "from" state, and the value is a set of valid "to" states.
//
// Terminal states (completed, claimed, failed) have no outgoing transitions.
// Direct deliveries are born terminal at completed; escrow deliveries walk
// issued → discovered → claimed.
var legalTransitions = map[escrowconnect.DeliveryStatus]map[escrowconnect.DeliveryStatus]bool{
	escrowconnect.StatusIssued: {
		escrowconnect.StatusDiscovered: true,
		escrowconnect.StatusFailed:     true,
	},
	escrowconnect.StatusDiscovered: {
		escrowconnect.StatusClaimed: true,
		escrowconnect.StatusFailed:  true,
	},
	// Terminal states have no outgoing transitions
	escrowconnect.StatusCompleted: {},
	escrowconnect.StatusClaimed:   {},
	escrowconnect.StatusFailed:    {},
}

// ValidateTransition checks if a state transition from "from" to "to" is legal
// for the delivery lifecycle.
//
// Returns nil if the transition is valid, or an error with code
// TRANSITION_INVALID if the transition is not allowed.
func ValidateTransition(from, to escrowconnect.DeliveryStatus) error {
	// Check if the "from" state exists in the transition map
	validToStates, exists := legalTransitions[from]
	if !exists {
		return errors.NewAnchorError(
			errors.TRANSITION_INVALID,
			fmt.Sprintf("unknown source state: %s", from),
			nil,
		)
	}

	// Check if the "to" state is in the set of valid transitions
	if !validToStates[to] {
		return errors.NewAnchorError(
			errors.TRANSITION_INVALID,
			fmt.Sprintf("illegal transition from %s to %s", from, to),
			nil,
		)
	}

	return nil
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(status escrowconnect.DeliveryStatus) bool {
	next, exists := legalTransitions[status]
	return exists && len(next) == 0
}
