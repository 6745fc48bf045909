package award

import "context"

// Store is the durable backing of the ledger.
//
// WithinPair must run fn atomically with respect to every other WithinPair
// call for the same (studentID, badgeID), across processes. If a concurrent
// writer wins a race the store returns shared.ErrConcurrentModification and
// the ledger retries.
type Store interface {
	WithinPair(ctx context.Context, studentID, badgeID string, fn func(tx PairTx) error) error

	// Get returns an award by ID. Returns shared.ErrAwardNotFound.
	Get(ctx context.Context, awardID string) (*Award, error)

	// ListActive returns the non-revoked awards of an athlete.
	ListActive(ctx context.Context, studentID string) ([]Award, error)

	// ListAll returns every award record of an athlete, revoked included.
	ListAll(ctx context.Context, studentID string) ([]Award, error)

	// ListEvents returns an athlete's audit events, oldest first.
	ListEvents(ctx context.Context, studentID string) ([]Event, error)
}

// PairTx is the unit of work for a single (athlete, badge) pair.
type PairTx interface {
	// Load returns the pair's record, or nil if there is none.
	Load(ctx context.Context) (*Award, error)

	Insert(ctx context.Context, a *Award) error
	Update(ctx context.Context, a *Award) error
	AppendEvent(ctx context.Context, e Event) error
}
