package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/require"

	escrowconnect "github.com/stellar-connect/escrow-go"
	"github.com/stellar-connect/escrow-go/errors"
	"github.com/stellar-connect/escrow-go/signers"
	"github.com/stellar-connect/escrow-go/store/memory"
)

type fakeLedger struct {
	accounts  map[string]*escrowconnect.AccountState
	submitErr error
	submitted []string
}

func (f *fakeLedger) LoadAccount(_ context.Context, id string) (*escrowconnect.AccountState, error) {
	state, ok := f.accounts[id]
	if !ok {
		return nil, errors.NewLedgerError(errors.ACCOUNT_NOT_FOUND, "account "+id+" does not exist", nil)
	}
	return state, nil
}

func (f *fakeLedger) BaseFee(_ context.Context) (int64, error) {
	return txnbuild.MinBaseFee, nil
}

func (f *fakeLedger) Submit(_ context.Context, envelopeXDR string) (*escrowconnect.Receipt, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, envelopeXDR)
	return &escrowconnect.Receipt{Hash: "cafebabe", Ledger: 2}, nil
}

func (f *fakeLedger) AccountsBySigner(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (f *fakeLedger) FundAccount(_ context.Context, _ string) error {
	return nil
}

// fixture wires a claimer against an escrow account holding 100 ABC.
type fixture struct {
	ledger    *fakeLedger
	claimer   *Claimer
	recipient escrowconnect.Signer
	escrowID  string
	asset     escrowconnect.Asset
}

func newFixture(t *testing.T, store escrowconnect.DeliveryStore) *fixture {
	t.Helper()

	recipient, err := signers.Generate()
	require.NoError(t, err)
	escrowSigner, err := signers.Generate()
	require.NoError(t, err)
	issuerSigner, err := signers.Generate()
	require.NoError(t, err)

	asset := escrowconnect.Asset{Code: "ABC", Issuer: issuerSigner.PublicKey()}
	escrowID := escrowSigner.PublicKey()

	ledger := &fakeLedger{
		accounts: map[string]*escrowconnect.AccountState{
			escrowID: {
				ID:            escrowID,
				Sequence:      42,
				NativeBalance: "4.0000000",
				Trustlines: []escrowconnect.Trustline{
					{Asset: asset, Balance: "100.0000000", Limit: "100.0000000"},
				},
				Signers: []escrowconnect.AccountSigner{
					{Key: recipient.PublicKey(), Weight: 1},
				},
			},
		},
	}

	claimer, err := NewClaimer(Config{
		Ledger:            ledger,
		NetworkPassphrase: network.TestNetworkPassphrase,
		Store:             store,
	})
	require.NoError(t, err)

	return &fixture{
		ledger:    ledger,
		claimer:   claimer,
		recipient: recipient,
		escrowID:  escrowID,
		asset:     asset,
	}
}

func decodeSubmitted(t *testing.T, envelopeXDR string) *txnbuild.Transaction {
	t.Helper()
	parsed, err := txnbuild.TransactionFromXDR(envelopeXDR)
	require.NoError(t, err)
	tx, ok := parsed.Transaction()
	require.True(t, ok)
	return tx
}

// requireMergeTail checks the fixed, ordered tail every claim transaction must
// end with: asset payment, then change-trust to limit 0 on the escrow, then
// account merge.
func requireMergeTail(t *testing.T, ops []txnbuild.Operation, mainID string, asset escrowconnect.Asset, amt string) {
	t.Helper()
	require.GreaterOrEqual(t, len(ops), 3)
	tail := ops[len(ops)-3:]

	payment, ok := tail[0].(*txnbuild.Payment)
	require.True(t, ok, "expected asset payment, got %T", tail[0])
	require.Equal(t, mainID, payment.Destination)
	require.Equal(t, asset.Code, payment.Asset.GetCode())
	wantAmt, err := amount.ParseInt64(amt)
	require.NoError(t, err)
	gotAmt, err := amount.ParseInt64(payment.Amount)
	require.NoError(t, err)
	require.Equal(t, wantAmt, gotAmt)

	trust, ok := tail[1].(*txnbuild.ChangeTrust)
	require.True(t, ok, "expected change-trust, got %T", tail[1])
	limit, err := amount.ParseInt64(trust.Limit)
	require.NoError(t, err)
	require.Zero(t, limit)
	require.Empty(t, trust.SourceAccount, "trustline removal must run on the escrow account")

	merge, ok := tail[2].(*txnbuild.AccountMerge)
	require.True(t, ok, "expected account merge, got %T", tail[2])
	require.Equal(t, mainID, merge.Destination)
}

func TestClaimCreatesMissingMainAccount(t *testing.T) {
	f := newFixture(t, nil)
	mainID := f.recipient.PublicKey()

	result, err := f.claimer.Claim(context.Background(), f.recipient, f.escrowID, f.asset, "100")
	require.NoError(t, err)
	require.True(t, result.CreatedAccount)
	require.True(t, result.OpenedTrustline)
	require.Equal(t, mainID, result.MainAccount)
	require.Equal(t, f.escrowID, result.EscrowAccount)
	require.Equal(t, "cafebabe", result.TxHash)

	require.Len(t, f.ledger.submitted, 1)
	tx := decodeSubmitted(t, f.ledger.submitted[0])

	// Sequence context is the escrow account, signed by the recipient alone.
	require.Equal(t, f.escrowID, tx.SourceAccount().AccountID)
	require.Len(t, tx.Signatures(), 1)

	ops := tx.Operations()
	require.Len(t, ops, 6)

	create, ok := ops[0].(*txnbuild.CreateAccount)
	require.True(t, ok)
	require.Equal(t, mainID, create.Destination)

	topUp, ok := ops[1].(*txnbuild.Payment)
	require.True(t, ok)
	require.True(t, topUp.Asset.IsNative())
	require.Equal(t, mainID, topUp.Destination)

	trust, ok := ops[2].(*txnbuild.ChangeTrust)
	require.True(t, ok)
	require.Equal(t, mainID, trust.SourceAccount)
	require.Equal(t, f.asset.Code, trust.Line.GetCode())

	requireMergeTail(t, ops, mainID, f.asset, "100")
}

func TestClaimOpensTrustlineOnExistingAccount(t *testing.T) {
	f := newFixture(t, nil)
	mainID := f.recipient.PublicKey()
	f.ledger.accounts[mainID] = &escrowconnect.AccountState{
		ID:            mainID,
		Sequence:      9,
		NativeBalance: "100.0000000",
	}

	result, err := f.claimer.Claim(context.Background(), f.recipient, f.escrowID, f.asset, "100")
	require.NoError(t, err)
	require.False(t, result.CreatedAccount)
	require.True(t, result.OpenedTrustline)

	tx := decodeSubmitted(t, f.ledger.submitted[0])
	ops := tx.Operations()
	require.Len(t, ops, 5)

	topUp, ok := ops[0].(*txnbuild.Payment)
	require.True(t, ok)
	require.True(t, topUp.Asset.IsNative())
	got, err := amount.ParseInt64(topUp.Amount)
	require.NoError(t, err)
	want, err := amount.ParseInt64(trustlineMargin)
	require.NoError(t, err)
	require.Equal(t, want, got)

	trust, ok := ops[1].(*txnbuild.ChangeTrust)
	require.True(t, ok)
	require.Equal(t, mainID, trust.SourceAccount)

	requireMergeTail(t, ops, mainID, f.asset, "100")
}

func TestClaimSkipsTrustlineWhenPresent(t *testing.T) {
	f := newFixture(t, nil)
	mainID := f.recipient.PublicKey()
	f.ledger.accounts[mainID] = &escrowconnect.AccountState{
		ID:            mainID,
		Sequence:      9,
		NativeBalance: "100.0000000",
		Trustlines: []escrowconnect.Trustline{
			{Asset: f.asset, Balance: "0.0000000", Limit: "922337203685.4775807"},
		},
	}

	result, err := f.claimer.Claim(context.Background(), f.recipient, f.escrowID, f.asset, "100")
	require.NoError(t, err)
	require.False(t, result.CreatedAccount)
	require.False(t, result.OpenedTrustline)

	tx := decodeSubmitted(t, f.ledger.submitted[0])
	ops := tx.Operations()
	require.Len(t, ops, 4)

	// Smaller native margin, no trust op on the main account.
	topUp, ok := ops[0].(*txnbuild.Payment)
	require.True(t, ok)
	require.True(t, topUp.Asset.IsNative())
	got, err := amount.ParseInt64(topUp.Amount)
	require.NoError(t, err)
	want, err := amount.ParseInt64(offerMargin)
	require.NoError(t, err)
	require.Equal(t, want, got)
	for _, op := range ops {
		if trust, isTrust := op.(*txnbuild.ChangeTrust); isTrust {
			require.Empty(t, trust.SourceAccount)
		}
	}

	requireMergeTail(t, ops, mainID, f.asset, "100")
}

func TestClaimDerivesAmountFromEscrowBalance(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.claimer.Claim(context.Background(), f.recipient, f.escrowID, f.asset, "")
	require.NoError(t, err)
	require.Equal(t, "100.0000000", result.Amount)
}

func TestClaimAfterMergeSurfacesNotFound(t *testing.T) {
	f := newFixture(t, nil)
	delete(f.ledger.accounts, f.escrowID)

	_, err := f.claimer.Claim(context.Background(), f.recipient, f.escrowID, f.asset, "100")
	require.True(t, errors.HasCode(err, errors.ACCOUNT_NOT_FOUND))
	require.Empty(t, f.ledger.submitted)
}

func TestClaimRejectsEscrowWithoutAsset(t *testing.T) {
	f := newFixture(t, nil)
	f.ledger.accounts[f.escrowID].Trustlines = nil

	_, err := f.claimer.Claim(context.Background(), f.recipient, f.escrowID, f.asset, "100")
	require.True(t, errors.HasCode(err, errors.ESCROW_EMPTY))
	require.Empty(t, f.ledger.submitted)
}

func TestClaimSurfacesSubmissionRejection(t *testing.T) {
	f := newFixture(t, nil)
	f.ledger.submitErr = errors.NewLedgerError(errors.SUBMISSION_REJECTED, "op_no_trust", nil)

	_, err := f.claimer.Claim(context.Background(), f.recipient, f.escrowID, f.asset, "100")
	require.True(t, errors.HasCode(err, errors.SUBMISSION_REJECTED))
}

func TestClaimAdvancesDeliveryRecord(t *testing.T) {
	store := memory.NewDeliveryStore()
	f := newFixture(t, store)

	require.NoError(t, store.Save(context.Background(), &escrowconnect.Delivery{
		ID:            "d1",
		Recipient:     f.recipient.PublicKey(),
		AssetCode:     f.asset.Code,
		AssetIssuer:   f.asset.Issuer,
		Amount:        "100",
		Method:        escrowconnect.MethodEscrow,
		EscrowAccount: f.escrowID,
		Status:        escrowconnect.StatusIssued,
		CreatedAt:     time.Now(),
	}))

	_, err := f.claimer.Claim(context.Background(), f.recipient, f.escrowID, f.asset, "100")
	require.NoError(t, err)

	d, err := store.FindByID(context.Background(), "d1")
	require.NoError(t, err)
	require.Equal(t, escrowconnect.StatusClaimed, d.Status)
}

func TestClaimWithExtraCoSigner(t *testing.T) {
	f := newFixture(t, nil)
	mainID := f.recipient.PublicKey()
	f.ledger.accounts[mainID] = &escrowconnect.AccountState{ID: mainID, Sequence: 9}

	coSigner, err := signers.Generate()
	require.NoError(t, err)

	_, err = f.claimer.Claim(context.Background(), f.recipient, f.escrowID, f.asset, "100", coSigner)
	require.NoError(t, err)

	tx := decodeSubmitted(t, f.ledger.submitted[0])
	require.Len(t, tx.Signatures(), 2)
}
