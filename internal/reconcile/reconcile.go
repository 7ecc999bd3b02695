// Package reconcile decides whether an incoming registration matches an
// existing person or creates a new one, and merges partial profile fields
// supplied piecemeal from either channel.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"assistbot/internal/domain"
)

// Registration is one registration attempt from either channel.
type Registration struct {
	Kind        domain.ChannelKind
	Address     string
	DisplayName string
	Handle      string
	Phone       string
}

// Policy resolves registrations against the identity store. A handle, when
// present, is the strongest cross-channel key; absent a handle the channel
// address itself is the key. Two distinct addresses with no shared handle
// stay two distinct persons - nothing in the data can link them.
type Policy struct {
	ids    domain.IdentityStore
	logger *slog.Logger
}

func New(ids domain.IdentityStore, logger *slog.Logger) *Policy {
	return &Policy{ids: ids, logger: logger}
}

// Register runs the match-or-create state machine and always finishes with a
// channel bind. Every step commits valid state on its own, so a failure at
// any point leaves the store consistent and the whole attempt retryable.
func (p *Policy) Register(ctx context.Context, reg Registration) (*domain.Person, error) {
	if reg.DisplayName == "" {
		return nil, fmt.Errorf("display name required: %w", domain.ErrValidation)
	}
	if reg.Address == "" {
		return nil, fmt.Errorf("channel address required: %w", domain.ErrValidation)
	}

	target, err := p.match(ctx, reg)
	if err != nil {
		return nil, err
	}

	if target == nil {
		target, err = p.ids.CreatePerson(ctx, reg.DisplayName, reg.Handle, reg.Phone)
		if err != nil {
			return nil, err
		}
		p.logger.Info("registration created person",
			"person_id", target.ID, "kind", reg.Kind, "address", reg.Address)
	} else {
		patch := domain.ProfilePatch{
			DisplayName: reg.DisplayName,
			Handle:      reg.Handle,
			Phone:       reg.Phone,
		}
		if err := p.ids.MergeProfile(ctx, target.ID, patch); err != nil {
			return nil, err
		}
		p.logger.Info("registration matched person",
			"person_id", target.ID, "kind", reg.Kind, "address", reg.Address)
	}

	if err := p.ids.BindChannel(ctx, target.ID, reg.Kind, reg.Address); err != nil {
		return nil, err
	}

	// Re-read so the caller sees the merged profile.
	return p.ids.GetPerson(ctx, target.ID)
}

func (p *Policy) match(ctx context.Context, reg Registration) (*domain.Person, error) {
	if reg.Handle != "" {
		person, err := p.ids.FindByHandle(ctx, reg.Handle)
		if err == nil {
			return person, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	person, err := p.ids.FindByChannel(ctx, reg.Kind, reg.Address)
	if err == nil {
		return person, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return nil, nil
}
