package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"assistbot/internal/domain"

	"github.com/google/uuid"
)

func (s *SQLiteStore) CreatePerson(ctx context.Context, displayName, handle, phone string) (*domain.Person, error) {
	if displayName == "" {
		return nil, fmt.Errorf("display name required: %w", domain.ErrValidation)
	}

	p := &domain.Person{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		Handle:      handle,
		Phone:       phone,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO persons (id, display_name, handle, phone, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.DisplayName, nullable(p.Handle), nullable(p.Phone), p.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("handle %q already taken: %w", handle, domain.ErrConflict)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("person created", "person_id", p.ID, "handle", p.Handle)
	return p, nil
}

func (s *SQLiteStore) GetPerson(ctx context.Context, id string) (*domain.Person, error) {
	return s.scanPerson(s.db.QueryRowContext(ctx,
		`SELECT id, display_name, handle, phone, created_at FROM persons WHERE id = ?`, id))
}

func (s *SQLiteStore) FindByHandle(ctx context.Context, handle string) (*domain.Person, error) {
	if handle == "" {
		return nil, fmt.Errorf("empty handle: %w", domain.ErrNotFound)
	}
	return s.scanPerson(s.db.QueryRowContext(ctx,
		`SELECT id, display_name, handle, phone, created_at FROM persons WHERE handle = ?`, handle))
}

func (s *SQLiteStore) FindByChannel(ctx context.Context, kind domain.ChannelKind, address string) (*domain.Person, error) {
	return s.scanPerson(s.db.QueryRowContext(ctx,
		`SELECT p.id, p.display_name, p.handle, p.phone, p.created_at
		 FROM persons p
		 JOIN channel_bindings b ON b.person_id = p.id
		 WHERE b.channel_kind = ? AND b.channel_address = ?`, string(kind), address))
}

// BindChannel inserts conditionally and re-reads on conflict, so concurrent
// binds for the same address race at the database, not in this process.
func (s *SQLiteStore) BindChannel(ctx context.Context, personID string, kind domain.ChannelKind, address string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_bindings (channel_kind, channel_address, person_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		string(kind), address, personID, time.Now().UTC(),
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("person %s: %w", personID, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		s.logger.Info("channel bound", "person_id", personID, "kind", kind, "address", address)
		return nil
	}

	// Nothing inserted: either this exact binding already exists (no-op) or
	// one of the two uniqueness invariants was hit.
	var owner string
	err = s.db.QueryRowContext(ctx,
		`SELECT person_id FROM channel_bindings WHERE channel_kind = ? AND channel_address = ?`,
		string(kind), address,
	).Scan(&owner)
	switch {
	case err == sql.ErrNoRows:
		return fmt.Errorf("person %s already bound to another %s address: %w", personID, kind, domain.ErrConflict)
	case err != nil:
		return err
	case owner == personID:
		return nil
	default:
		return fmt.Errorf("%s address %q belongs to another person: %w", kind, address, domain.ErrConflict)
	}
}

// MergeProfile applies non-empty fields only. COALESCE keeps the stored value
// whenever the incoming one is absent, so a later update from one channel can
// never erase data supplied by the other.
func (s *SQLiteStore) MergeProfile(ctx context.Context, personID string, patch domain.ProfilePatch) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE persons SET
			display_name = COALESCE(?, display_name),
			handle       = COALESCE(?, handle),
			phone        = COALESCE(?, phone)
		 WHERE id = ?`,
		nullable(patch.DisplayName), nullable(patch.Handle), nullable(patch.Phone), personID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("handle %q already taken: %w", patch.Handle, domain.ErrConflict)
	}
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("person %s: %w", personID, domain.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) scanPerson(row *sql.Row) (*domain.Person, error) {
	var p domain.Person
	var handle, phone sql.NullString
	err := row.Scan(&p.ID, &p.DisplayName, &handle, &phone, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Handle = handle.String
	p.Phone = phone.String
	return &p, nil
}
