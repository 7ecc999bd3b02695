package domain

import "context"

// IdentityStore owns Person and ChannelBinding records. All write paths are
// safe under concurrent invocation from both adapters: uniqueness is enforced
// atomically at the store level, never by check-then-act in the caller.
type IdentityStore interface {
	// CreatePerson inserts a new person. Fails with ErrConflict when handle
	// is non-empty and already bound to another person.
	CreatePerson(ctx context.Context, displayName, handle, phone string) (*Person, error)

	GetPerson(ctx context.Context, id string) (*Person, error)
	FindByHandle(ctx context.Context, handle string) (*Person, error)
	FindByChannel(ctx context.Context, kind ChannelKind, address string) (*Person, error)

	// BindChannel is idempotent for an identical existing binding and fails
	// with ErrConflict when the address belongs to another person, or the
	// person already holds a different address for this channel kind.
	BindChannel(ctx context.Context, personID string, kind ChannelKind, address string) error

	// MergeProfile applies only non-empty patch fields; it never clears a
	// previously set field.
	MergeProfile(ctx context.Context, personID string, patch ProfilePatch) error
}

// HistoryLedger is the append-only per-person, per-stream log.
type HistoryLedger interface {
	// Append assigns entry ID and timestamp server-side and writes the entry.
	// Fails with ErrNotFound when the person does not exist.
	Append(ctx context.Context, personID string, stream Stream, payload EntryPayload) (*HistoryEntry, error)

	// List returns entries ordered ascending by (created_at, id). since is an
	// exclusive entry-ID lower bound; 0 means from the beginning. limit <= 0
	// applies a default.
	List(ctx context.Context, personID string, stream Stream, since int64, limit int) ([]HistoryEntry, error)
}

// LanguageModel is the completion collaborator.
type LanguageModel interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// SearchService is the web search collaborator.
type SearchService interface {
	Search(ctx context.Context, query string) (*SearchResult, error)
}

// FileAnalyzer is the file analysis collaborator.
type FileAnalyzer interface {
	Analyze(ctx context.Context, data []byte, mediaKind string) (string, error)
}
