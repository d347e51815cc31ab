package domain

import "context"

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

// PersistenceAdapter loads and stores registry snapshots. Implementations
// report failures as errors and never panic past the boundary.
type PersistenceAdapter interface {
	// Load returns the last saved snapshot. The boolean is false when no
	// snapshot exists.
	Load(ctx context.Context) (Registry, bool, error)
	// Save persists a full snapshot.
	Save(ctx context.Context, reg Registry) error
	// Subscribe invokes onChange whenever an external writer updates the
	// snapshot. Adapters without a change feed return ErrSubscribeUnsupported.
	Subscribe(ctx context.Context, onChange func(Registry)) (Unsubscribe, error)
	// Driver names the backend for logs and metrics.
	Driver() string
}
