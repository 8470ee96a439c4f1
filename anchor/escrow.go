package anchor

import (
	"fmt"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/txnbuild"

	escrowconnect "github.com/stellar-connect/escrow-go"
	"github.com/stellar-connect/escrow-go/core/txplan"
	"github.com/stellar-connect/escrow-go/errors"
)

// Escrow funding policy. The escrow account's starting balance is derived
// from ledger reserves rather than a bare literal:
//
//	starting balance = baseReserve × (2 account entries + 1 trustline entry) + margin
//
// The margin must cover everything the claim transaction later spends from the
// escrow account: the main-account create (1 XLM) or the trustline/offer
// top-up payments (0.5–1 XLM), plus fee headroom. With the defaults below the
// starting balance renders as "4.0000000" lumens.
const (
	// DefaultBaseReserve is the network base reserve in lumens.
	DefaultBaseReserve = "0.5"

	// DefaultEscrowFundingMargin is the claim-side spending allowance in
	// lumens, configurable via Config.EscrowFundingMargin.
	DefaultEscrowFundingMargin = "2.5"

	// escrowLedgerEntries is what the escrow account holds reserves for:
	// the account itself (2 base reserves) and its one trustline.
	escrowLedgerEntries = 3
)

// escrowStartingBalance computes the escrow account's initial native balance
// from the reserve formula above. Inputs and output are decimal lumen strings.
func escrowStartingBalance(baseReserve, margin string) (string, error) {
	base, err := amount.ParseInt64(baseReserve)
	if err != nil {
		return "", fmt.Errorf("invalid base reserve %q: %w", baseReserve, err)
	}
	m, err := amount.ParseInt64(margin)
	if err != nil {
		return "", fmt.Errorf("invalid funding margin %q: %w", margin, err)
	}
	return amount.StringFromInt64(base*escrowLedgerEntries + m), nil
}

// escrowPlan builds the four-operation escrow hand-off transaction. Operation
// order is load-bearing: each operation depends on the previous ones taking
// effect within the same transaction.
//
//  1. createAccount — fund the escrow account from the issuer.
//  2. changeTrust   — the escrow account opens a trustline to the asset.
//  3. payment       — the issuer pays the asset into the escrow account.
//  4. setOptions    — zero the escrow master key and install the recipient
//     as the sole weight-1 signer.
//
// The transaction runs under the issuer's sequence number and must be signed
// by both the issuer and the transient escrow keypair: the escrow master key
// authorizes operations 2 and 4 before it is revoked by operation 4 itself.
// Submission is all-or-nothing, so no half-configured escrow account can ever
// be observed.
func (a *Anchor) escrowPlan(issuer *escrowconnect.AccountState, escrowID, recipientID, amt string, fee int64) (*txplan.Plan, error) {
	startingBalance, err := escrowStartingBalance(a.baseReserve, a.fundingMargin)
	if err != nil {
		return nil, errors.NewAnchorError(errors.BUILD_FAILED, "failed to size escrow starting balance", err)
	}

	asset := a.Asset()
	line := txnbuild.CreditAsset{Code: asset.Code, Issuer: asset.Issuer}

	plan := txplan.New(issuer.ID, issuer.Sequence, fee, a.notifier)
	plan.Add(&txnbuild.CreateAccount{
		Destination: escrowID,
		Amount:      startingBalance,
	}, fmt.Sprintf("Creating the escrow account with a starting balance of %s lumens to cover the reserve, trustline, future merge payment to the recipient's main account, and possible account creation if the recipient doesn't have an account yet", startingBalance))
	plan.Add(&txnbuild.ChangeTrust{
		Line:          txnbuild.ChangeTrustAssetWrapper{Asset: line},
		Limit:         amt,
		SourceAccount: escrowID,
	}, "Adding the trustline to the escrow account")
	plan.Add(&txnbuild.Payment{
		Destination: escrowID,
		Asset:       line,
		Amount:      amt,
	}, "Sending the assets to be transferred into the escrow account")
	plan.Add(&txnbuild.SetOptions{
		SourceAccount: escrowID,
		MasterWeight:  txnbuild.NewThreshold(0),
		Signer: &txnbuild.Signer{
			Address: recipientID,
			Weight:  txnbuild.Threshold(1),
		},
	}, "Removing the anchor's signing power over the escrow account, and replacing that signer with the final destination account")

	return plan, nil
}

// directPlan builds the trivial single-payment transaction used when the
// recipient already holds a trustline to the asset.
func (a *Anchor) directPlan(issuer *escrowconnect.AccountState, recipientID, amt string, fee int64) *txplan.Plan {
	asset := a.Asset()
	plan := txplan.New(issuer.ID, issuer.Sequence, fee, a.notifier)
	plan.Add(&txnbuild.Payment{
		Destination: recipientID,
		Asset:       txnbuild.CreditAsset{Code: asset.Code, Issuer: asset.Issuer},
		Amount:      amt,
	}, "Recipient already trusts the asset, paying it directly")
	return plan
}
