package store

import (
	"context"
	"fmt"
	"time"

	"assistbot/internal/domain"
)

const defaultListLimit = 100

// Append writes one history entry. Entry ID and timestamp are assigned here,
// never by the caller, so ordering stays monotonic under concurrent writers.
func (s *SQLiteStore) Append(ctx context.Context, personID string, stream domain.Stream, payload domain.EntryPayload) (*domain.HistoryEntry, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO history (person_id, stream, request, response, filename, media_kind, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		personID, string(stream),
		payload.Request, payload.Response,
		payload.Filename, payload.MediaKind, payload.Description,
		now,
	)
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("person %s: %w", personID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	entry := &domain.HistoryEntry{
		ID:           id,
		PersonID:     personID,
		Stream:       stream,
		EntryPayload: payload,
		CreatedAt:    now,
	}
	s.logger.Debug("history appended", "person_id", personID, "stream", stream, "entry_id", id)
	return entry, nil
}

// List returns entries ascending by (created_at, id). The since cursor is an
// exclusive entry-ID lower bound; ids come from a single AUTOINCREMENT writer
// with server-assigned timestamps, so id order never disagrees with
// (created_at, id) order and a monotonically advancing cursor never
// re-delivers an entry.
func (s *SQLiteStore) List(ctx context.Context, personID string, stream domain.Stream, since int64, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, person_id, stream, request, response, filename, media_kind, description, created_at
		 FROM history
		 WHERE person_id = ? AND stream = ? AND id > ?
		 ORDER BY created_at, id
		 LIMIT ?`,
		personID, string(stream), since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.ID, &e.PersonID, &e.Stream,
			&e.Request, &e.Response,
			&e.Filename, &e.MediaKind, &e.Description,
			&e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountEntries reports ledger size per stream, used by the status command.
func (s *SQLiteStore) CountEntries(ctx context.Context, stream domain.Stream) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM history WHERE stream = ?`, string(stream)).Scan(&n)
	return n, err
}

// CountPersons reports the number of registered persons.
func (s *SQLiteStore) CountPersons(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons`).Scan(&n)
	return n, err
}
