package tracker

import "context"

// Store is the coordination record shared by all instances. Reads and
// writes are independent calls; nothing makes a read-then-write atomic.
type Store interface {
	// Read fetches the current body and labels.
	Read(ctx context.Context) (Record, error)
	// RemoveLabel deletes a single label. Removing a missing label is not
	// an error for the gh backend.
	RemoveLabel(ctx context.Context, label string) error
}
