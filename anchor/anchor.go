package anchor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/keypair"

	escrowconnect "github.com/stellar-connect/escrow-go"
	"github.com/stellar-connect/escrow-go/core/txplan"
	"github.com/stellar-connect/escrow-go/errors"
	"github.com/stellar-connect/escrow-go/notify"
	"github.com/stellar-connect/escrow-go/signers"
)

// Config configures an Anchor.
type Config struct {
	// AssetCode is the code of the asset this anchor issues. The issuer is
	// the anchor's own account, so the full asset identity is known only
	// after Initialize.
	AssetCode string

	// NetworkPassphrase identifies the Stellar network
	// (e.g., "Test SDF Network ; September 2015").
	NetworkPassphrase string

	// Ledger is the network boundary. Required.
	Ledger escrowconnect.Ledger

	// Signer is the issuer's signing identity. Optional: when nil,
	// Initialize generates a fresh keypair.
	Signer escrowconnect.Signer

	// Notifier receives the protocol trace. Optional; defaults to a no-op.
	Notifier escrowconnect.Notifier

	// Store persists delivery records. Optional.
	Store escrowconnect.DeliveryStore

	// Hooks receives delivery lifecycle events. Optional.
	Hooks *HookRegistry

	// DisableDirectPayment forces the escrow path even for recipients that
	// already hold a trustline. The direct-payment fallback is a
	// configuration flag, not a separate code path.
	DisableDirectPayment bool

	// BaseReserve overrides the network base reserve used to size escrow
	// funding. Optional; defaults to DefaultBaseReserve.
	BaseReserve string

	// EscrowFundingMargin overrides the claim-side spending allowance
	// included in the escrow starting balance. Optional; defaults to
	// DefaultEscrowFundingMargin.
	EscrowFundingMargin string
}

// Anchor is the issuing party: it owns the asset's issuer account and decides
// per delivery between a direct payment and the escrow hand-off.
//
// Deliver is not idempotent: two calls with the same arguments create two
// escrow accounts or two payments. Callers must de-duplicate upstream. Calls
// that share the issuer account must be serialized by the caller; concurrent
// submissions from one account risk sequence collisions.
type Anchor struct {
	ledger               escrowconnect.Ledger
	signer               escrowconnect.Signer
	notifier             escrowconnect.Notifier
	store                escrowconnect.DeliveryStore
	hooks                *HookRegistry
	assetCode            string
	networkPassphrase    string
	disableDirectPayment bool
	baseReserve          string
	fundingMargin        string
}

// New creates an Anchor from the given configuration.
func New(cfg Config) (*Anchor, error) {
	if strings.TrimSpace(cfg.AssetCode) == "" {
		return nil, errors.NewAnchorError(errors.CONFIG_INVALID, "asset code is required", nil)
	}
	if cfg.Ledger == nil {
		return nil, errors.NewAnchorError(errors.CONFIG_INVALID, "ledger is required", nil)
	}
	if strings.TrimSpace(cfg.NetworkPassphrase) == "" {
		return nil, errors.NewAnchorError(errors.CONFIG_INVALID, "network passphrase is required", nil)
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Nop()
	}
	hooks := cfg.Hooks
	if hooks == nil {
		hooks = NewHookRegistry()
	}
	baseReserve := cfg.BaseReserve
	if baseReserve == "" {
		baseReserve = DefaultBaseReserve
	}
	fundingMargin := cfg.EscrowFundingMargin
	if fundingMargin == "" {
		fundingMargin = DefaultEscrowFundingMargin
	}
	if _, err := escrowStartingBalance(baseReserve, fundingMargin); err != nil {
		return nil, errors.NewAnchorError(errors.CONFIG_INVALID, "invalid escrow funding policy", err)
	}

	return &Anchor{
		ledger:               cfg.Ledger,
		signer:               cfg.Signer,
		notifier:             notifier,
		store:                cfg.Store,
		hooks:                hooks,
		assetCode:            cfg.AssetCode,
		networkPassphrase:    cfg.NetworkPassphrase,
		disableDirectPayment: cfg.DisableDirectPayment,
		baseReserve:          baseReserve,
		fundingMargin:        fundingMargin,
	}, nil
}

// Initialize creates and funds the issuer's own account and returns its
// identifier. A funding failure is fatal: the anchor cannot operate without
// an issuer account, and the step is not retried.
func (a *Anchor) Initialize(ctx context.Context) (string, error) {
	if a.signer == nil {
		signer, err := signers.Generate()
		if err != nil {
			return "", errors.NewAnchorError(errors.SIGNING_FAILED, "failed to generate issuer keypair", err)
		}
		a.signer = signer
	}

	accountID := a.signer.PublicKey()
	a.notifier.Emit("Creating Issuer account " + accountID)
	if err := a.ledger.FundAccount(ctx, accountID); err != nil {
		return "", err
	}
	return accountID, nil
}

// AccountID returns the issuer account identifier. Empty before Initialize
// when no Signer was configured.
func (a *Anchor) AccountID() string {
	if a.signer == nil {
		return ""
	}
	return a.signer.PublicKey()
}

// Asset returns the asset this anchor issues.
func (a *Anchor) Asset() escrowconnect.Asset {
	return escrowconnect.Asset{Code: a.assetCode, Issuer: a.AccountID()}
}

// Deliver sends amt of the anchor's asset to recipientID. If the recipient
// account exists and already trusts the asset, a direct payment is made
// (unless DisableDirectPayment is set); otherwise the asset is parked in a
// freshly created escrow account whose sole signer is the recipient.
//
// Exactly one transaction is submitted per call.
func (a *Anchor) Deliver(ctx context.Context, recipientID, amt string) (*escrowconnect.Delivery, error) {
	if a.signer == nil {
		return nil, errors.NewAnchorError(errors.CONFIG_INVALID, "anchor not initialized", nil)
	}
	if _, err := keypair.ParseAddress(recipientID); err != nil {
		return nil, errors.NewAnchorError(errors.INVALID_ACCOUNT, "recipient is not a valid Stellar address", err)
	}
	parsed, err := amount.ParseInt64(amt)
	if err != nil || parsed <= 0 {
		return nil, errors.NewAnchorError(errors.INVALID_AMOUNT, "amount must be a positive decimal string", err)
	}

	a.notifier.Emit("Received asset request from account " + recipientID)

	hasTrustline := false
	recipient, err := a.ledger.LoadAccount(ctx, recipientID)
	if err != nil {
		if !errors.HasCode(err, errors.ACCOUNT_NOT_FOUND) {
			return nil, err
		}
	} else {
		hasTrustline = recipient.HasTrustline(a.Asset())
	}

	fee, err := a.ledger.BaseFee(ctx)
	if err != nil {
		return nil, err
	}
	issuer, err := a.ledger.LoadAccount(ctx, a.AccountID())
	if err != nil {
		return nil, err
	}

	if hasTrustline && !a.disableDirectPayment {
		return a.deliverDirect(ctx, issuer, recipientID, amt, fee)
	}
	return a.deliverEscrow(ctx, issuer, recipientID, amt, fee)
}

func (a *Anchor) deliverDirect(ctx context.Context, issuer *escrowconnect.AccountState, recipientID, amt string, fee int64) (*escrowconnect.Delivery, error) {
	plan := a.directPlan(issuer, recipientID, amt, fee)
	receipt, err := a.submitSigned(ctx, plan, a.signer)
	if err != nil {
		return nil, err
	}

	delivery := a.newDelivery(recipientID, amt)
	delivery.Method = escrowconnect.MethodDirect
	delivery.Status = escrowconnect.StatusCompleted
	delivery.TxHash = receipt.Hash

	if err := a.recordDelivery(ctx, delivery); err != nil {
		return nil, err
	}
	a.hooks.Trigger(HookDeliveryCompleted, delivery)
	return delivery, nil
}

func (a *Anchor) deliverEscrow(ctx context.Context, issuer *escrowconnect.AccountState, recipientID, amt string, fee int64) (*escrowconnect.Delivery, error) {
	a.notifier.Emit("Anchor needs to generate an escrow account with the receiver as the only signer to hold the assets to be claimed")
	escrowSigner, err := signers.Generate()
	if err != nil {
		return nil, errors.NewAnchorError(errors.SIGNING_FAILED, "failed to generate escrow keypair", err)
	}
	escrowID := escrowSigner.PublicKey()
	a.notifier.Emit("Generated escrow account keys " + escrowID)

	plan, err := a.escrowPlan(issuer, escrowID, recipientID, amt, fee)
	if err != nil {
		return nil, err
	}

	// The escrow keypair is discarded after signing; from here on the
	// recipient's key is the only authority over the escrow account.
	receipt, err := a.submitSigned(ctx, plan, a.signer, escrowSigner)
	if err != nil {
		return nil, err
	}

	delivery := a.newDelivery(recipientID, amt)
	delivery.Method = escrowconnect.MethodEscrow
	delivery.Status = escrowconnect.StatusIssued
	delivery.EscrowAccount = escrowID
	delivery.TxHash = receipt.Hash

	if err := a.recordDelivery(ctx, delivery); err != nil {
		return nil, err
	}
	a.hooks.Trigger(HookDeliveryIssued, delivery)
	return delivery, nil
}

// submitSigned builds the plan's transaction, collects signatures from every
// required party in order, and submits the envelope through the plan so the
// operation list is logged before the ledger's verdict.
func (a *Anchor) submitSigned(ctx context.Context, plan *txplan.Plan, signing ...escrowconnect.Signer) (*escrowconnect.Receipt, error) {
	tx, err := plan.Build()
	if err != nil {
		return nil, errors.NewAnchorError(errors.BUILD_FAILED, "failed to build transaction", err)
	}
	envelope, err := tx.Base64()
	if err != nil {
		return nil, errors.NewAnchorError(errors.BUILD_FAILED, "failed to encode transaction", err)
	}
	for _, s := range signing {
		envelope, err = s.SignTransaction(ctx, envelope, a.networkPassphrase)
		if err != nil {
			return nil, errors.NewAnchorError(errors.SIGNING_FAILED, "failed to sign transaction", err)
		}
	}
	return plan.Submit(ctx, a.ledger, envelope)
}

func (a *Anchor) newDelivery(recipientID, amt string) *escrowconnect.Delivery {
	now := time.Now()
	asset := a.Asset()
	return &escrowconnect.Delivery{
		ID:          newDeliveryID(),
		Recipient:   recipientID,
		AssetCode:   asset.Code,
		AssetIssuer: asset.Issuer,
		Amount:      amt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (a *Anchor) recordDelivery(ctx context.Context, d *escrowconnect.Delivery) error {
	if a.store == nil {
		return nil
	}
	if err := a.store.Save(ctx, d); err != nil {
		return errors.NewAnchorError(errors.STORE_ERROR, "failed to save delivery", err)
	}
	return nil
}

// newDeliveryID generates a random 128-bit hex identifier.
func newDeliveryID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
