package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"assistbot/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreatePerson_AndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreatePerson(ctx, "Ana", "ana1", "+4912345")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Fatal("expected server-assigned id and timestamp")
	}

	got, err := s.GetPerson(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DisplayName != "Ana" || got.Handle != "ana1" || got.Phone != "+4912345" {
		t.Errorf("unexpected person: %+v", got)
	}
}

func TestCreatePerson_MissingDisplayName(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreatePerson(context.Background(), "", "x", "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreatePerson_DuplicateHandle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreatePerson(ctx, "Ana", "ana1", ""); err != nil {
		t.Fatal(err)
	}
	_, err := s.CreatePerson(ctx, "Impostor", "ana1", "")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreatePerson_EmptyHandlesDoNotCollide(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreatePerson(ctx, "A", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreatePerson(ctx, "B", "", ""); err != nil {
		t.Fatalf("persons without handles must not conflict: %v", err)
	}
}

func TestFindByHandle_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindByHandle(context.Background(), "nobody")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBindChannel_IdempotentRebind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.CreatePerson(ctx, "Ana", "ana1", "")
	if err := s.BindChannel(ctx, p.ID, domain.ChannelBot, "tg:555"); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	if err := s.BindChannel(ctx, p.ID, domain.ChannelBot, "tg:555"); err != nil {
		t.Fatalf("identical rebind must be a no-op: %v", err)
	}

	got, err := s.FindByChannel(ctx, domain.ChannelBot, "tg:555")
	if err != nil {
		t.Fatalf("find by channel: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("resolved wrong person: %s != %s", got.ID, p.ID)
	}
}

func TestBindChannel_AddressOwnedByOther(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1, _ := s.CreatePerson(ctx, "Ana", "ana1", "")
	p2, _ := s.CreatePerson(ctx, "Ben", "ben1", "")

	if err := s.BindChannel(ctx, p1.ID, domain.ChannelBot, "tg:555"); err != nil {
		t.Fatal(err)
	}
	err := s.BindChannel(ctx, p2.ID, domain.ChannelBot, "tg:555")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestBindChannel_SecondAddressSameKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.CreatePerson(ctx, "Ana", "ana1", "")
	if err := s.BindChannel(ctx, p.ID, domain.ChannelBot, "tg:555"); err != nil {
		t.Fatal(err)
	}
	err := s.BindChannel(ctx, p.ID, domain.ChannelBot, "tg:777")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("one binding per channel kind, expected ErrConflict, got %v", err)
	}
}

func TestBindChannel_UnknownPerson(t *testing.T) {
	s := newTestStore(t)
	err := s.BindChannel(context.Background(), "ghost", domain.ChannelWeb, "web_abc")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBindChannel_ConcurrentSameAddress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1, _ := s.CreatePerson(ctx, "Ana", "ana1", "")
	p2, _ := s.CreatePerson(ctx, "Ben", "ben1", "")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, p := range []*domain.Person{p1, p2} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = s.BindChannel(ctx, id, domain.ChannelBot, "tg:999")
		}(i, p.ID)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConflict):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflict != 1 {
		t.Fatalf("expected exactly one winner and one conflict, got ok=%d conflict=%d", ok, conflict)
	}
}

func TestMergeProfile_NeverClears(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.CreatePerson(ctx, "Ana", "ana1", "+4912345")

	// Patch with absent phone and handle must not erase them.
	if err := s.MergeProfile(ctx, p.ID, domain.ProfilePatch{DisplayName: "Ana Maria"}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	got, _ := s.GetPerson(ctx, p.ID)
	if got.DisplayName != "Ana Maria" {
		t.Errorf("display name not merged: %q", got.DisplayName)
	}
	if got.Phone != "+4912345" || got.Handle != "ana1" {
		t.Errorf("merge cleared fields: %+v", got)
	}
}

func TestMergeProfile_FillsMissingFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.CreatePerson(ctx, "Ana", "", "")
	if err := s.MergeProfile(ctx, p.ID, domain.ProfilePatch{Handle: "ana1", Phone: "+4912345"}); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetPerson(ctx, p.ID)
	if got.Handle != "ana1" || got.Phone != "+4912345" {
		t.Errorf("fields not filled: %+v", got)
	}
}

func TestMergeProfile_HandleConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreatePerson(ctx, "Ana", "ana1", "")
	p2, _ := s.CreatePerson(ctx, "Ben", "", "")

	err := s.MergeProfile(ctx, p2.ID, domain.ProfilePatch{Handle: "ana1"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestMergeProfile_UnknownPerson(t *testing.T) {
	s := newTestStore(t)
	err := s.MergeProfile(context.Background(), "ghost", domain.ProfilePatch{DisplayName: "X"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
