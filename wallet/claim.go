// Package wallet implements the recipient side of the escrow delivery
// protocol: claiming a discovered escrow account by merging its asset and
// leftover lumens into the recipient's main account.
package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/txnbuild"

	escrowconnect "github.com/stellar-connect/escrow-go"
	"github.com/stellar-connect/escrow-go/anchor"
	"github.com/stellar-connect/escrow-go/core/txplan"
	"github.com/stellar-connect/escrow-go/errors"
	"github.com/stellar-connect/escrow-go/notify"
)

// Native-currency margins moved during a claim, in lumens. The escrow
// account's starting balance was sized by the anchor to cover all of them.
const (
	// mainAccountStartingBalance funds the recipient's main account when the
	// claim has to create it.
	mainAccountStartingBalance = "1"

	// trustlineMargin covers the main account's trustline reserve plus one
	// offer, paid when the claim opens the trustline.
	trustlineMargin = "1"

	// offerMargin covers one offer, paid when the trustline already exists.
	offerMargin = "0.5"
)

// Config configures a Claimer.
type Config struct {
	// Ledger is the network boundary. Required.
	Ledger escrowconnect.Ledger

	// NetworkPassphrase identifies the Stellar network.
	NetworkPassphrase string

	// Notifier receives the protocol trace. Optional; defaults to a no-op.
	Notifier escrowconnect.Notifier

	// Store, when set, advances the matching delivery record to claimed
	// after a successful merge. Optional.
	Store escrowconnect.DeliveryStore
}

// MergeResult describes a completed claim.
type MergeResult struct {
	// EscrowAccount is the identifier of the escrow account that was merged
	// away. It no longer exists on the ledger.
	EscrowAccount string

	// MainAccount is the recipient account now holding the asset.
	MainAccount string

	// Amount is the asset amount moved into the main account.
	Amount string

	// TxHash is the hash of the merge transaction.
	TxHash string

	// CreatedAccount reports whether the claim created the main account.
	CreatedAccount bool

	// OpenedTrustline reports whether the claim opened the main account's
	// trustline to the asset.
	OpenedTrustline bool
}

// Claimer builds and submits claim transactions.
type Claimer struct {
	ledger            escrowconnect.Ledger
	networkPassphrase string
	notifier          escrowconnect.Notifier
	store             escrowconnect.DeliveryStore
}

// NewClaimer creates a Claimer from the given configuration.
func NewClaimer(cfg Config) (*Claimer, error) {
	if cfg.Ledger == nil {
		return nil, errors.NewWalletError(errors.CONFIG_INVALID, "ledger is required", nil)
	}
	if strings.TrimSpace(cfg.NetworkPassphrase) == "" {
		return nil, errors.NewWalletError(errors.CONFIG_INVALID, "network passphrase is required", nil)
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Nop()
	}
	return &Claimer{
		ledger:            cfg.Ledger,
		networkPassphrase: cfg.NetworkPassphrase,
		notifier:          notifier,
		store:             cfg.Store,
	}, nil
}

// Claim merges the escrow account into the recipient's main account: it moves
// the full asset balance over, opens the main account and its trustline when
// they are missing, zeroes the escrow trustline, and folds the escrow's
// remaining lumens into the main account. One transaction, sequence context =
// escrow account, signed by the recipient (the escrow account's sole signer
// after the hand-off).
//
// extraSigners co-sign the same transaction. Required when the main account
// already exists under its own independent master key and the claim opens a
// trustline on it: that change-trust runs with the main account as source and
// needs its signature too.
//
// Submission is atomic: any rejection leaves the escrow account untouched.
// Claiming an already-merged escrow account fails with ACCOUNT_NOT_FOUND —
// surfaced, never retried blindly.
func (c *Claimer) Claim(ctx context.Context, recipient escrowconnect.Signer, escrowAccountID string, asset escrowconnect.Asset, amt string, extraSigners ...escrowconnect.Signer) (*MergeResult, error) {
	mainID := recipient.PublicKey()
	c.notifier.Emit("Merging the escrow account created by the anchor for me into my main account")

	escrow, err := c.ledger.LoadAccount(ctx, escrowAccountID)
	if err != nil {
		return nil, err
	}
	if !escrow.HasTrustline(asset) {
		return nil, errors.NewWalletError(errors.ESCROW_EMPTY,
			fmt.Sprintf("account %s holds no %s to claim", escrowAccountID, asset), nil)
	}
	if amt == "" {
		amt = escrow.Balance(asset)
	}
	if parsed, perr := amount.ParseInt64(amt); perr != nil || parsed <= 0 {
		return nil, errors.NewWalletError(errors.INVALID_AMOUNT, "amount must be a positive decimal string", perr)
	}

	accountExists := true
	needsTrustline := true
	main, err := c.ledger.LoadAccount(ctx, mainID)
	if err != nil {
		if !errors.HasCode(err, errors.ACCOUNT_NOT_FOUND) {
			return nil, err
		}
		accountExists = false
		c.notifier.Emit("The main account doesn't exist yet. We'll need to create it with the lumens in the escrow account")
	} else {
		c.notifier.Emit("The main account exists, we need to check if it needs a trustline or already has one")
		needsTrustline = !main.HasTrustline(asset)
	}

	fee, err := c.ledger.BaseFee(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := c.mergePlan(escrow, mainID, asset, amt, fee, accountExists, needsTrustline)
	if err != nil {
		return nil, err
	}

	tx, err := plan.Build()
	if err != nil {
		return nil, errors.NewWalletError(errors.CLAIM_BUILD_FAILED, "failed to build merge transaction", err)
	}
	envelope, err := tx.Base64()
	if err != nil {
		return nil, errors.NewWalletError(errors.CLAIM_BUILD_FAILED, "failed to encode merge transaction", err)
	}
	for _, s := range append([]escrowconnect.Signer{recipient}, extraSigners...) {
		envelope, err = s.SignTransaction(ctx, envelope, c.networkPassphrase)
		if err != nil {
			return nil, errors.NewWalletError(errors.SIGNING_FAILED, "failed to sign merge transaction", err)
		}
	}

	receipt, err := plan.Submit(ctx, c.ledger, envelope)
	if err != nil {
		return nil, err
	}

	if err := c.markClaimed(ctx, escrowAccountID); err != nil {
		return nil, err
	}

	return &MergeResult{
		EscrowAccount:   escrowAccountID,
		MainAccount:     mainID,
		Amount:          amt,
		TxHash:          receipt.Hash,
		CreatedAccount:  !accountExists,
		OpenedTrustline: needsTrustline,
	}, nil
}

// mergePlan assembles the conditional merge transaction. Whatever the branch,
// the tail is fixed and ordered: the asset payment strictly precedes the
// escrow's change-trust to limit 0 (the trustline cannot be zeroed while it
// still holds a balance), which strictly precedes the account merge (an
// account cannot merge away while holding a live trustline).
func (c *Claimer) mergePlan(escrow *escrowconnect.AccountState, mainID string, asset escrowconnect.Asset, amt string, fee int64, accountExists, needsTrustline bool) (*txplan.Plan, error) {
	line := txnbuild.CreditAsset{Code: asset.Code, Issuer: asset.Issuer}
	plan := txplan.New(escrow.ID, escrow.Sequence, fee, c.notifier)

	if !accountExists {
		plan.Add(&txnbuild.CreateAccount{
			Destination: mainID,
			Amount:      mainAccountStartingBalance,
		}, "Creating the main account with lumens from the escrow account")
	}

	if needsTrustline {
		plan.Add(&txnbuild.Payment{
			Destination: mainID,
			Asset:       txnbuild.NativeAsset{},
			Amount:      trustlineMargin,
		}, "The main account needs a trustline. Paying it enough lumens for one trustline and one offer")
		plan.Add(&txnbuild.ChangeTrust{
			Line:          txnbuild.ChangeTrustAssetWrapper{Asset: line},
			Limit:         txnbuild.MaxTrustlineLimit,
			SourceAccount: mainID,
		}, "Adding the trustline to the main account")
	} else {
		plan.Add(&txnbuild.Payment{
			Destination: mainID,
			Asset:       txnbuild.NativeAsset{},
			Amount:      offerMargin,
		}, "The main account has a trustline. Paying it enough lumens for one offer")
	}

	plan.Add(&txnbuild.Payment{
		Destination: mainID,
		Asset:       line,
		Amount:      amt,
	}, "Sending the full asset balance to the main account")
	plan.Add(&txnbuild.ChangeTrust{
		Line:  txnbuild.ChangeTrustAssetWrapper{Asset: line},
		Limit: "0",
	}, "Clearing the escrow account's trustline so it can be merged")
	plan.Add(&txnbuild.AccountMerge{
		Destination: mainID,
	}, "Merging the escrow account's remaining lumens into the main account")

	return plan, nil
}

// markClaimed advances the matching delivery record, stepping through
// discovered when the watcher never recorded the discovery itself.
func (c *Claimer) markClaimed(ctx context.Context, escrowAccountID string) error {
	if c.store == nil {
		return nil
	}
	delivery, err := c.store.FindByEscrowAccount(ctx, escrowAccountID)
	if err != nil {
		// The store may belong to a different actor than the anchor that
		// issued this escrow; an unknown escrow account is not a claim failure.
		return nil
	}
	if delivery.Status == escrowconnect.StatusIssued {
		if err := c.store.UpdateStatus(ctx, delivery.ID, escrowconnect.StatusDiscovered); err != nil {
			return err
		}
		delivery.Status = escrowconnect.StatusDiscovered
	}
	if err := anchor.ValidateTransition(delivery.Status, escrowconnect.StatusClaimed); err != nil {
		return err
	}
	return c.store.UpdateStatus(ctx, delivery.ID, escrowconnect.StatusClaimed)
}
