package txplan

import (
	"context"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/require"

	escrowconnect "github.com/stellar-connect/escrow-go"
	"github.com/stellar-connect/escrow-go/errors"
	"github.com/stellar-connect/escrow-go/notify"
)

type stubLedger struct {
	submitErr error
	submitted []string
}

func (s *stubLedger) LoadAccount(_ context.Context, _ string) (*escrowconnect.AccountState, error) {
	return nil, errors.NewLedgerError(errors.ACCOUNT_NOT_FOUND, "unused", nil)
}

func (s *stubLedger) BaseFee(_ context.Context) (int64, error) { return 100, nil }

func (s *stubLedger) Submit(_ context.Context, envelopeXDR string) (*escrowconnect.Receipt, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.submitted = append(s.submitted, envelopeXDR)
	return &escrowconnect.Receipt{Hash: "abc123", Ledger: 7}, nil
}

func (s *stubLedger) AccountsBySigner(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (s *stubLedger) FundAccount(_ context.Context, _ string) error { return nil }

func testAddresses(t *testing.T) (string, string) {
	t.Helper()
	source, err := keypair.Random()
	require.NoError(t, err)
	dest, err := keypair.Random()
	require.NoError(t, err)
	return source.Address(), dest.Address()
}

func TestBuildPreservesOperationOrder(t *testing.T) {
	sourceID, destID := testAddresses(t)

	plan := New(sourceID, 10, txnbuild.MinBaseFee, nil)
	plan.Add(&txnbuild.CreateAccount{Destination: destID, Amount: "1"}, "create")
	plan.Add(&txnbuild.Payment{Destination: destID, Asset: txnbuild.NativeAsset{}, Amount: "0.5"}, "pay")

	tx, err := plan.Build()
	require.NoError(t, err)
	require.Equal(t, sourceID, tx.SourceAccount().AccountID)

	ops := tx.Operations()
	require.Len(t, ops, 2)
	_, ok := ops[0].(*txnbuild.CreateAccount)
	require.True(t, ok)
	_, ok = ops[1].(*txnbuild.Payment)
	require.True(t, ok)
}

func TestBuildRejectsEmptyPlan(t *testing.T) {
	sourceID, _ := testAddresses(t)
	plan := New(sourceID, 10, txnbuild.MinBaseFee, nil)
	_, err := plan.Build()
	require.Error(t, err)
}

func TestDescribeEmitsMessagesInOrder(t *testing.T) {
	sourceID, destID := testAddresses(t)
	recorder := notify.NewRecorder()

	plan := New(sourceID, 10, txnbuild.MinBaseFee, recorder)
	plan.Add(&txnbuild.CreateAccount{Destination: destID, Amount: "1"}, "first step")
	plan.Add(&txnbuild.AccountMerge{Destination: destID}, "second step")
	plan.Describe()

	require.Equal(t, []string{
		"Sending transaction with ops:",
		"  ----------",
		"  first step",
		"  createAccount",
		"  ----------",
		"  second step",
		"  accountMerge",
		"  ----------",
	}, recorder.Messages())
}

func TestSubmitDescribesBeforeOutcome(t *testing.T) {
	sourceID, destID := testAddresses(t)
	recorder := notify.NewRecorder()
	ledger := &stubLedger{}

	plan := New(sourceID, 10, txnbuild.MinBaseFee, recorder)
	plan.Add(&txnbuild.Payment{Destination: destID, Asset: txnbuild.NativeAsset{}, Amount: "1"}, "pay")

	tx, err := plan.Build()
	require.NoError(t, err)
	envelope, err := tx.Base64()
	require.NoError(t, err)

	receipt, err := plan.Submit(context.Background(), ledger, envelope)
	require.NoError(t, err)
	require.Equal(t, "abc123", receipt.Hash)
	require.Equal(t, []string{envelope}, ledger.submitted)

	messages := recorder.Messages()
	require.Equal(t, "Sending transaction with ops:", messages[0])
	require.Equal(t, "Transaction succeeded abc123", messages[len(messages)-1])
}

func TestSubmitSurfacesRejection(t *testing.T) {
	sourceID, destID := testAddresses(t)
	recorder := notify.NewRecorder()
	ledger := &stubLedger{
		submitErr: errors.NewLedgerError(errors.SUBMISSION_REJECTED, "tx_bad_seq", nil),
	}

	plan := New(sourceID, 10, txnbuild.MinBaseFee, recorder)
	plan.Add(&txnbuild.Payment{Destination: destID, Asset: txnbuild.NativeAsset{}, Amount: "1"}, "pay")

	tx, err := plan.Build()
	require.NoError(t, err)
	envelope, err := tx.Base64()
	require.NoError(t, err)

	_, err = plan.Submit(context.Background(), ledger, envelope)
	require.True(t, errors.HasCode(err, errors.SUBMISSION_REJECTED))

	messages := recorder.Messages()
	require.Contains(t, messages[len(messages)-1], "Transaction failed")
}
