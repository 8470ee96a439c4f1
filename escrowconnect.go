// Package escrowconnect provides a Go SDK for custodial asset delivery on
// Stellar: an anchor issues a fungible asset to a recipient identified only by
// a public key, even when that recipient has no account and no trustline yet.
// The asset is parked in an anchor-funded escrow account whose signing
// authority is handed to the recipient atomically; the recipient later
// discovers the escrow account by signer query, claims the asset, and merges
// the escrow away. The SDK delegates key custody, persistence, and
// presentation to the developer through the interfaces below.
package escrowconnect

import (
	"context"
	"time"
)

// Signer is the minimal contract for proving identity and authorizing
// transactions. The SDK does not manage keys, wallet connections, or signing
// infrastructure. The caller provides a Signer; the SDK uses it.
type Signer interface {
	// PublicKey returns the Stellar address (G...) identifying this signer.
	PublicKey() string

	// SignTransaction signs a Stellar transaction envelope (base64 XDR).
	// The networkPassphrase is required for computing the correct transaction
	// hash. Returns the signed envelope as base64 XDR. Signatures accumulate:
	// multi-party signing chains calls on the same envelope.
	SignTransaction(ctx context.Context, xdr string, networkPassphrase string) (string, error)
}

// Ledger is the boundary to the Stellar network. Implementations wrap Horizon
// (core/horizon) or a test double. All protocol state lives behind this
// interface; the SDK itself persists nothing.
type Ledger interface {
	// LoadAccount fetches the current state of an account. A missing account
	// is reported with code ACCOUNT_NOT_FOUND so callers can branch on it;
	// transport failures use ACCOUNT_LOOKUP_FAILED.
	LoadAccount(ctx context.Context, accountID string) (*AccountState, error)

	// BaseFee quotes a per-operation fee in stroops, derived from recent
	// network fee stats.
	BaseFee(ctx context.Context) (int64, error)

	// Submit sends a signed transaction envelope (base64 XDR) and blocks
	// until the ledger accepts or rejects it. Rejections carry the ledger's
	// structured result codes (code SUBMISSION_REJECTED); they are never
	// retried here, since a rejected transaction must be rebuilt against a
	// fresh sequence number.
	Submit(ctx context.Context, envelopeXDR string) (*Receipt, error)

	// AccountsBySigner lists the IDs of accounts for which signerID is an
	// authorized signer, in the ledger's query order.
	AccountsBySigner(ctx context.Context, signerID string) ([]string, error)

	// FundAccount creates and funds an account via friendbot. Testnet only.
	FundAccount(ctx context.Context, accountID string) error
}

// Receipt is the result of a successful transaction submission.
type Receipt struct {
	// Hash is the hex-encoded transaction hash.
	Hash string

	// Ledger is the sequence number of the ledger that included the transaction.
	Ledger int32
}

// AccountState is a read-only snapshot of a ledger account.
type AccountState struct {
	ID            string
	Sequence      int64
	NativeBalance string
	Trustlines    []Trustline
	Signers       []AccountSigner
}

// Trustline is one (asset, balance, limit) record on an account.
type Trustline struct {
	Asset   Asset
	Balance string
	Limit   string
}

// AccountSigner is one weighted signer entry on an account.
type AccountSigner struct {
	Key    string
	Weight int32
}

// HasTrustline reports whether the account holds a trustline to the asset.
func (a *AccountState) HasTrustline(asset Asset) bool {
	for _, t := range a.Trustlines {
		if t.Asset.Equal(asset) {
			return true
		}
	}
	return false
}

// Balance returns the account's balance of the asset, or "0" when no
// trustline exists.
func (a *AccountState) Balance(asset Asset) string {
	for _, t := range a.Trustlines {
		if t.Asset.Equal(asset) {
			return t.Balance
		}
	}
	return "0"
}

// Asset identifies an issued Stellar asset by its (code, issuer) pair.
// Native lumens are not an Asset; the SDK handles them explicitly where the
// protocol moves reserve margins.
type Asset struct {
	Code   string
	Issuer string
}

// Equal reports whether two assets have the same (code, issuer) tuple.
func (a Asset) Equal(b Asset) bool {
	return a.Code == b.Code && a.Issuer == b.Issuer
}

// String formats the asset as "CODE:ISSUER".
func (a Asset) String() string {
	return a.Code + ":" + a.Issuer
}

// Notifier is the presentation sink. Emit is fire-and-forget; implementations
// must preserve call order so transaction traces stay readable. The SDK emits
// every transaction's operation list before submission and the outcome after.
type Notifier interface {
	Emit(message string)
}

// DeliveryMethod distinguishes the two issuance paths.
type DeliveryMethod string

const (
	// MethodDirect is a single payment operation to a recipient that already
	// holds a trustline to the asset.
	MethodDirect DeliveryMethod = "direct"

	// MethodEscrow parks the asset in an intermediate account whose signing
	// authority is handed to the recipient.
	MethodEscrow DeliveryMethod = "escrow"
)

// DeliveryStatus is the current state in the delivery lifecycle. Transitions
// are validated by anchor.ValidateTransition.
type DeliveryStatus string

const (
	// StatusIssued means the escrow transaction landed: the escrow account
	// exists, funded and signed over to the recipient.
	StatusIssued DeliveryStatus = "issued"

	// StatusDiscovered means the recipient's watcher has found the escrow
	// account but has not yet claimed it.
	StatusDiscovered DeliveryStatus = "discovered"

	// StatusClaimed is a terminal state: the escrow account was merged into
	// the recipient's main account.
	StatusClaimed DeliveryStatus = "claimed"

	// StatusCompleted is a terminal state for direct deliveries, which need
	// no discovery or claim.
	StatusCompleted DeliveryStatus = "completed"

	// StatusFailed is a terminal state: the delivery cannot proceed.
	StatusFailed DeliveryStatus = "failed"
)

// Delivery is the canonical record of one deliver call.
type Delivery struct {
	ID            string
	Recipient     string // Stellar account the delivery is addressed to
	AssetCode     string
	AssetIssuer   string
	Amount        string // Decimal string
	Method        DeliveryMethod
	EscrowAccount string // Set for escrow deliveries
	TxHash        string // Hash of the issuance transaction
	Status        DeliveryStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryStore is the persistence interface for delivery records. The SDK
// calls these methods during lifecycle transitions; the developer implements
// the interface against their own database (store/memory ships a map-backed
// one for tests and demos).
type DeliveryStore interface {
	// Save persists a new delivery record.
	Save(ctx context.Context, d *Delivery) error

	// FindByID retrieves a delivery by its unique identifier.
	FindByID(ctx context.Context, id string) (*Delivery, error)

	// FindByRecipient returns all deliveries addressed to a Stellar account,
	// ordered by creation time descending.
	FindByRecipient(ctx context.Context, account string) ([]*Delivery, error)

	// FindByEscrowAccount retrieves the delivery whose escrow account has the
	// given identifier. Escrow accounts are unique per delivery.
	FindByEscrowAccount(ctx context.Context, escrowAccountID string) (*Delivery, error)

	// UpdateStatus transitions a delivery to a new status. Implementations
	// must reject transitions that anchor.ValidateTransition disallows.
	UpdateStatus(ctx context.Context, id string, status DeliveryStatus) error
}
