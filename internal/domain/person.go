package domain

import "time"

// ChannelKind identifies one of the two front doors.
type ChannelKind string

const (
	ChannelWeb ChannelKind = "web"
	ChannelBot ChannelKind = "bot"
)

// Stream partitions a person's history by interaction type.
type Stream string

const (
	StreamChat   Stream = "chat"
	StreamFile   Stream = "file"
	StreamSearch Stream = "search"
)

// Person is the canonical identity record, independent of any channel.
// Optional fields use "" for absent.
type Person struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Handle      string    `json:"handle,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChannelBinding links a Person to one external channel address.
// A (kind, address) pair resolves to exactly one person, and a person
// holds at most one binding per channel kind.
type ChannelBinding struct {
	PersonID  string      `json:"person_id"`
	Kind      ChannelKind `json:"channel_kind"`
	Address   string      `json:"channel_address"`
	CreatedAt time.Time   `json:"created_at"`
}

// ProfilePatch carries partial profile fields for a merge.
// Empty fields are absent and never clear previously set values.
type ProfilePatch struct {
	DisplayName string `json:"display_name,omitempty"`
	Handle      string `json:"handle,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// EntryPayload is the stream-specific body of a history entry.
// Chat fills Request/Response, search fills Request (query) and
// Response (summary), file fills Filename/MediaKind/Description.
type EntryPayload struct {
	Request     string `json:"request,omitempty"`
	Response    string `json:"response,omitempty"`
	Filename    string `json:"filename,omitempty"`
	MediaKind   string `json:"media_kind,omitempty"`
	Description string `json:"description,omitempty"`
}

// HistoryEntry is one immutable unit of interaction. Entries are ordered
// by (CreatedAt, ID); both are assigned by the store at append time.
type HistoryEntry struct {
	ID       int64  `json:"id"`
	PersonID string `json:"person_id"`
	Stream   Stream `json:"stream"`
	EntryPayload
	CreatedAt time.Time `json:"created_at"`
}

// SearchResult is what the web search collaborator returns.
type SearchResult struct {
	Raw     []string `json:"raw_results,omitempty"`
	Summary string   `json:"summary"`
}
