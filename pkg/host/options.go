package host

import (
	"time"

	"github.com/dukex/flowhost/pkg/eventbus"
)

// Option configures a WorkflowHost.
type Option func(*WorkflowHost)

// WithConcurrency bounds how many workflows one Trigger processes at once. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(h *WorkflowHost) {
		h.concurrency = max(n, 1)
	}
}

// WithPublisher publishes instance lifecycle events after every persisted pass.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(h *WorkflowHost) {
		h.publisher = publisher
	}
}

// WithIDGenerator replaces the UUIDv7 instance identifiers.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(h *WorkflowHost) {
		h.newID = newID
	}
}

// WithClock sets the time source used for instance creation.
func WithClock(now func() time.Time) Option {
	return func(h *WorkflowHost) {
		h.now = now
	}
}
