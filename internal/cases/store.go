package cases

import "context"

// Store persists cases. Implementations must make Transition atomic: the
// status change and the history append become visible together or not at
// all.
type Store interface {
	ListCases(ctx context.Context, filter Filter) ([]Case, error)
	GetCase(ctx context.Context, id string) (Case, error)
	CreateCase(ctx context.Context, c Case) (Case, error)
	UpdateCase(ctx context.Context, id string, upd Update) (Case, error)

	// Transition sets the status (empty keeps the current one) and prepends
	// the history entry in one atomic step, bumping UpdatedAt.
	Transition(ctx context.Context, id string, status string, entry HistoryEntry) (Case, error)

	// AddDocument attaches a document and bumps UpdatedAt.
	AddDocument(ctx context.Context, id string, doc Document) (Case, error)

	// NextCaseSequence returns the next monotonic per-year sequence number
	// used to mint case ids. Implementations must be safe under concurrent
	// callers.
	NextCaseSequence(ctx context.Context, year int) (int, error)
}
