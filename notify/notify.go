// Package notify provides Notifier sinks. A Notifier receives the SDK's
// protocol trace: every transaction's operation list before submission and the
// outcome after. Emit is synchronous, so message order always matches call
// order.
package notify

import (
	"sync"

	"github.com/sirupsen/logrus"

	escrowconnect "github.com/stellar-connect/escrow-go"
)

// Func adapts a plain function to the Notifier interface.
type Func func(message string)

// Emit calls the wrapped function.
func (f Func) Emit(message string) {
	f(message)
}

// Nop discards all messages.
func Nop() escrowconnect.Notifier {
	return Func(func(string) {})
}

// Prefix wraps a Notifier so every message carries a party tag, e.g.
// "[Anchor] " or "[Wallet] ", keeping interleaved traces attributable.
func Prefix(prefix string, next escrowconnect.Notifier) escrowconnect.Notifier {
	return Func(func(message string) {
		next.Emit(prefix + message)
	})
}

// Logrus emits messages at Info level through a logrus logger, tagged with a
// component field. This is the production sink; tests use Recorder.
func Logrus(logger *logrus.Logger, component string) escrowconnect.Notifier {
	entry := logger.WithField("component", component)
	return Func(func(message string) {
		entry.Info(message)
	})
}

// Recorder is a Notifier that captures messages in order, for tests.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit appends the message to the recording.
func (r *Recorder) Emit(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

// Messages returns a copy of everything emitted so far, in emission order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}
