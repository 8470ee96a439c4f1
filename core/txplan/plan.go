// Package txplan builds auditable Stellar transactions. A Plan accumulates
// operations together with human-readable messages, builds the transaction
// envelope against an explicit sequence context, and emits the full operation
// list to a Notifier before submission. Each Plan is an independent value
// passed through the call chain; there is no shared pending-operation state
// between transactions.
package txplan

import (
	"context"
	"fmt"

	"github.com/stellar/go/txnbuild"

	escrowconnect "github.com/stellar-connect/escrow-go"
)

// txTimeoutSeconds bounds transaction validity. A rejected or expired
// transaction must be rebuilt with a fresh sequence number.
const txTimeoutSeconds = 100

type step struct {
	op      txnbuild.Operation
	message string
}

// Plan is a single pending transaction: an ordered operation list plus the
// sequence context it will execute under. Build once, sign with every required
// party, submit exactly once.
type Plan struct {
	sourceID string
	sequence int64
	baseFee  int64
	steps    []step
	notifier escrowconnect.Notifier
}

// New creates a Plan whose sequence context is the given account at the given
// current sequence number.
func New(sourceID string, sequence int64, baseFee int64, notifier escrowconnect.Notifier) *Plan {
	return &Plan{
		sourceID: sourceID,
		sequence: sequence,
		baseFee:  baseFee,
		notifier: notifier,
	}
}

// Add appends an operation with an audit message explaining why the operation
// is part of the transaction. Order of Add calls is the order of execution.
func (p *Plan) Add(op txnbuild.Operation, message string) *Plan {
	p.steps = append(p.steps, step{op: op, message: message})
	return p
}

// Operations returns the accumulated operations in execution order.
func (p *Plan) Operations() []txnbuild.Operation {
	ops := make([]txnbuild.Operation, len(p.steps))
	for i, s := range p.steps {
		ops[i] = s.op
	}
	return ops
}

// Build assembles the unsigned transaction. The source account's sequence
// number is incremented, so a Plan can only be built against live state.
func (p *Plan) Build() (*txnbuild.Transaction, error) {
	if len(p.steps) == 0 {
		return nil, fmt.Errorf("transaction plan has no operations")
	}
	return txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount: &txnbuild.SimpleAccount{
			AccountID: p.sourceID,
			Sequence:  p.sequence,
		},
		IncrementSequenceNum: true,
		Operations:           p.Operations(),
		BaseFee:              p.baseFee,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimeout(txTimeoutSeconds),
		},
	})
}

// Describe emits the full operation list to the notifier, one block per
// operation, in execution order. Called before every submission so the audit
// trail always precedes the ledger's verdict.
func (p *Plan) Describe() {
	if p.notifier == nil {
		return
	}
	p.notifier.Emit("Sending transaction with ops:")
	p.notifier.Emit("  ----------")
	for _, s := range p.steps {
		if s.message != "" {
			p.notifier.Emit("  " + s.message)
		}
		p.notifier.Emit("  " + opName(s.op))
		p.notifier.Emit("  ----------")
	}
}

// Submit describes the plan, submits the signed envelope through the ledger,
// and emits the outcome. The envelope must have been built from this Plan and
// signed by all required parties.
func (p *Plan) Submit(ctx context.Context, ledger escrowconnect.Ledger, envelopeXDR string) (*escrowconnect.Receipt, error) {
	p.Describe()
	receipt, err := ledger.Submit(ctx, envelopeXDR)
	if err != nil {
		if p.notifier != nil {
			p.notifier.Emit(fmt.Sprintf("Transaction failed: %v", err))
		}
		return nil, err
	}
	if p.notifier != nil {
		p.notifier.Emit("Transaction succeeded " + receipt.Hash)
	}
	return receipt, nil
}

// opName returns a stable lowercase-camel name for an operation, matching the
// ledger's operation vocabulary.
func opName(op txnbuild.Operation) string {
	switch op.(type) {
	case *txnbuild.CreateAccount:
		return "createAccount"
	case *txnbuild.ChangeTrust:
		return "changeTrust"
	case *txnbuild.Payment:
		return "payment"
	case *txnbuild.SetOptions:
		return "setOptions"
	case *txnbuild.AccountMerge:
		return "accountMerge"
	default:
		return fmt.Sprintf("%T", op)
	}
}
