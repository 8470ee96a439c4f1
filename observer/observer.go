// Package observer provides discovery of escrow accounts on the recipient
// side. There is no push channel from the anchor to the recipient: the two
// parties coordinate only through ledger state. The SignerWatcher therefore
// polls the ledger's accounts-by-signer query until an account appears that
// has granted the watched key signing authority — which is exactly what the
// escrow hand-off transaction does.
//
// Example usage:
//
//	w := observer.NewSignerWatcher(ledger,
//	    observer.WithInterval(time.Second),
//	    observer.WithNotifier(walletLog),
//	)
//
//	escrowID, err := w.Watch(ctx, recipient.PublicKey())
//	if err != nil {
//	    // cancelled before any escrow account appeared
//	}
//
// The watcher may be started before the anchor's delivery completes; an empty
// query result is simply "no match yet" and is retried on the next tick.
package observer

import (
	"time"

	escrowconnect "github.com/stellar-connect/escrow-go"
)

// DefaultPollInterval is the fixed delay between accounts-by-signer queries.
const DefaultPollInterval = 1 * time.Second

// Result is the outcome of an asynchronous watch: the discovered escrow
// account identifier, or the error that ended the watch.
type Result struct {
	AccountID string
	Err       error
}

// WatcherOption is a function that configures a SignerWatcher.
type WatcherOption func(*SignerWatcher)

// WithInterval sets the polling interval. The protocol uses a fixed interval
// with no backoff; a failed poll simply waits for the next tick.
func WithInterval(interval time.Duration) WatcherOption {
	return func(w *SignerWatcher) {
		w.interval = interval
	}
}

// WithNotifier sets the sink for poll-failure and discovery messages.
func WithNotifier(notifier escrowconnect.Notifier) WatcherOption {
	return func(w *SignerWatcher) {
		w.notifier = notifier
	}
}
