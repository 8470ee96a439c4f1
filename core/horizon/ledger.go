// Package horizon implements the escrowconnect.Ledger interface against a
// Horizon server. It is the only component that talks to the network; the
// protocol packages (anchor, wallet, observer) consume the interface and never
// see Horizon types.
package horizon

import (
	"context"
	"fmt"

	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	hProtocol "github.com/stellar/go-stellar-sdk/protocols/horizon"
	"github.com/stellar/go/txnbuild"

	escrowconnect "github.com/stellar-connect/escrow-go"
	"github.com/stellar-connect/escrow-go/errors"
)

// Ledger is a Horizon-backed implementation of escrowconnect.Ledger.
type Ledger struct {
	client *horizonclient.Client
}

// New creates a Ledger backed by the given Horizon URL.
func New(horizonURL string) *Ledger {
	return &Ledger{
		client: &horizonclient.Client{HorizonURL: horizonURL},
	}
}

// NewWithClient wraps an existing Horizon client, for callers that configure
// their own HTTP transport or timeouts.
func NewWithClient(client *horizonclient.Client) *Ledger {
	return &Ledger{client: client}
}

// LoadAccount fetches the current state of an account. An absent account is
// reported with ACCOUNT_NOT_FOUND; transport failures with ACCOUNT_LOOKUP_FAILED.
func (l *Ledger) LoadAccount(_ context.Context, accountID string) (*escrowconnect.AccountState, error) {
	account, err := l.client.AccountDetail(horizonclient.AccountRequest{
		AccountID: accountID,
	})
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			return nil, errors.NewLedgerError(errors.ACCOUNT_NOT_FOUND,
				fmt.Sprintf("account %s does not exist", accountID), err)
		}
		return nil, errors.NewLedgerError(errors.ACCOUNT_LOOKUP_FAILED,
			fmt.Sprintf("failed to fetch account %s", accountID), err)
	}

	state, err := convertAccount(account)
	if err != nil {
		return nil, errors.NewLedgerError(errors.ACCOUNT_LOOKUP_FAILED,
			fmt.Sprintf("malformed account record for %s", accountID), err)
	}
	return state, nil
}

// BaseFee quotes a per-operation fee from recent fee stats. It uses the p90
// accepted max fee so transactions clear promptly during surge pricing, and
// falls back to the network minimum when stats are unavailable.
func (l *Ledger) BaseFee(_ context.Context) (int64, error) {
	stats, err := l.client.FeeStats()
	if err != nil {
		return 0, errors.NewLedgerError(errors.FEE_ESTIMATE_FAILED, "failed to fetch fee stats", err)
	}
	fee := stats.MaxFee.P90
	if fee < txnbuild.MinBaseFee {
		fee = txnbuild.MinBaseFee
	}
	return fee, nil
}

// Submit sends a signed envelope and blocks for the ledger's verdict.
// Rejections surface the ledger's per-operation result codes in the error
// context; they are never retried here.
func (l *Ledger) Submit(_ context.Context, envelopeXDR string) (*escrowconnect.Receipt, error) {
	resp, err := l.client.SubmitTransactionXDR(envelopeXDR)
	if err != nil {
		subErr := errors.NewLedgerError(errors.SUBMISSION_REJECTED, "transaction rejected by ledger", err)
		if hErr, ok := err.(*horizonclient.Error); ok {
			if codes, codesErr := hErr.ResultCodes(); codesErr == nil {
				subErr.WithContext(errors.ResultCodesKey, codes)
			}
		}
		return nil, subErr
	}

	return &escrowconnect.Receipt{
		Hash:   resp.Hash,
		Ledger: resp.Ledger,
	}, nil
}

// AccountsBySigner lists accounts for which signerID is an authorized signer,
// in Horizon's query order (ledger close order).
func (l *Ledger) AccountsBySigner(_ context.Context, signerID string) ([]string, error) {
	page, err := l.client.Accounts(horizonclient.AccountsRequest{
		Signer: signerID,
	})
	if err != nil {
		return nil, errors.NewLedgerError(errors.ACCOUNT_LOOKUP_FAILED,
			fmt.Sprintf("failed to query accounts for signer %s", signerID), err)
	}

	ids := make([]string, 0, len(page.Embedded.Records))
	for _, record := range page.Embedded.Records {
		ids = append(ids, record.AccountID)
	}
	return ids, nil
}

// FundAccount creates and funds an account via friendbot. Testnet only;
// a failure here is fatal to issuer initialization.
func (l *Ledger) FundAccount(_ context.Context, accountID string) error {
	if _, err := l.client.Fund(accountID); err != nil {
		return errors.NewLedgerError(errors.FUNDING_FAILED,
			fmt.Sprintf("friendbot funding of %s failed", accountID), err)
	}
	return nil
}

// convertAccount maps a Horizon account record to the SDK snapshot type.
func convertAccount(account hProtocol.Account) (*escrowconnect.AccountState, error) {
	sequence, err := account.GetSequenceNumber()
	if err != nil {
		return nil, err
	}

	state := &escrowconnect.AccountState{
		ID:       account.AccountID,
		Sequence: sequence,
	}

	for _, b := range account.Balances {
		if b.Type == "native" {
			state.NativeBalance = b.Balance
			continue
		}
		state.Trustlines = append(state.Trustlines, escrowconnect.Trustline{
			Asset:   escrowconnect.Asset{Code: b.Code, Issuer: b.Issuer},
			Balance: b.Balance,
			Limit:   b.Limit,
		})
	}

	for _, s := range account.Signers {
		state.Signers = append(state.Signers, escrowconnect.AccountSigner{
			Key:    s.Key,
			Weight: s.Weight,
		})
	}

	return state, nil
}

// Compile-time interface check
var _ escrowconnect.Ledger = (*Ledger)(nil)
