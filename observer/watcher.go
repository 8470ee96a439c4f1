package observer

import (
	"context"
	"fmt"
	"sync"
	"time"

	escrowconnect "github.com/stellar-connect/escrow-go"
	"github.com/stellar-connect/escrow-go/errors"
)

// SignerWatcher polls the ledger for accounts that list a given key as an
// authorized signer. It resolves exactly once per Watch call, with the first
// account whose identifier differs from the watched key (self-signing is not
// discovery). When several escrow accounts exist for the same signer, the
// first record in the ledger's query order wins; concurrent escrows are not
// disambiguated.
type SignerWatcher struct {
	ledger   escrowconnect.Ledger
	interval time.Duration
	notifier escrowconnect.Notifier

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSignerWatcher creates a watcher polling the given ledger.
func NewSignerWatcher(ledger escrowconnect.Ledger, opts ...WatcherOption) *SignerWatcher {
	w := &SignerWatcher{
		ledger:   ledger,
		interval: DefaultPollInterval,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch blocks until an account granting signerID signing authority appears,
// then returns its identifier. A failed poll is reported to the notifier and
// retried at the next tick, indefinitely; only a match, context cancellation,
// or Stop ends the loop. After cancellation no further queries are issued.
func (w *SignerWatcher) Watch(ctx context.Context, signerID string) (string, error) {
	if w.notifier != nil {
		w.notifier.Emit("Listening for accounts where I am a signer")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", errors.NewObserverError(errors.WATCH_CANCELLED, "watch cancelled", ctx.Err())
		case <-w.stopChan:
			return "", errors.NewObserverError(errors.WATCH_CANCELLED, "watcher stopped", nil)
		case <-ticker.C:
		}

		// The tick and the cancellation can race; re-check so a cancelled
		// watch never issues another query.
		if ctx.Err() != nil {
			return "", errors.NewObserverError(errors.WATCH_CANCELLED, "watch cancelled", ctx.Err())
		}

		accounts, err := w.ledger.AccountsBySigner(ctx, signerID)
		if err != nil {
			// Transient failure: report and wait for the next tick.
			pollErr := errors.NewObserverError(errors.POLL_FAILED, "accounts-by-signer query failed", err)
			if w.notifier != nil {
				w.notifier.Emit(fmt.Sprintf("Poll failed, retrying: %v", pollErr))
			}
			continue
		}

		for _, id := range accounts {
			if id == signerID {
				continue
			}
			if w.notifier != nil {
				w.notifier.Emit("Found claimable account: " + id)
			}
			return id, nil
		}
	}
}

// WatchAsync runs Watch in a background goroutine and delivers the single
// result on the returned channel. The channel is buffered, so an abandoned
// watch does not leak its goroutine once it resolves or is cancelled.
func (w *SignerWatcher) WatchAsync(ctx context.Context, signerID string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		id, err := w.Watch(ctx, signerID)
		out <- Result{AccountID: id, Err: err}
	}()
	return out
}

// Stop ends all Watch calls on this watcher. It's safe to call Stop multiple
// times.
func (w *SignerWatcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	return nil
}
