package channel

import (
	"context"

	"assistbot/internal/domain"
	"assistbot/internal/reconcile"
)

// Service is the capability set both adapters are built on. Implemented by
// *assistant.Service; adapters translate channel-native input into these
// calls and never mutate data directly.
type Service interface {
	ResolveIdentity(ctx context.Context, kind domain.ChannelKind, address string) (*domain.Person, error)
	Register(ctx context.Context, reg reconcile.Registration) (*domain.Person, error)
	Person(ctx context.Context, id string) (*domain.Person, error)
	History(ctx context.Context, personID string, stream domain.Stream, since int64, limit int) ([]domain.HistoryEntry, error)
	Chat(ctx context.Context, personID, message string) (*domain.HistoryEntry, error)
	Search(ctx context.Context, personID, query string) (*domain.HistoryEntry, error)
	AnalyzeUpload(ctx context.Context, personID, filename, mediaKind string, data []byte) (*domain.HistoryEntry, error)
}
