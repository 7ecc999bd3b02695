package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"assistbot/internal/domain"
)

func TestAppend_AssignsServerSideIDAndTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.CreatePerson(ctx, "Ana", "", "")
	entry, err := s.Append(ctx, p.ID, domain.StreamChat, domain.EntryPayload{
		Request:  "hello",
		Response: "hi there",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.ID == 0 || entry.CreatedAt.IsZero() {
		t.Fatal("expected server-assigned entry id and timestamp")
	}
}

func TestAppend_UnknownPerson(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append(context.Background(), "ghost", domain.StreamChat, domain.EntryPayload{Request: "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList_OrderedAndStreamScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.CreatePerson(ctx, "Ana", "", "")
	for i := 0; i < 5; i++ {
		if _, err := s.Append(ctx, p.ID, domain.StreamChat, domain.EntryPayload{
			Request: fmt.Sprintf("msg %d", i),
		}); err != nil {
			t.Fatal(err)
		}
	}
	// A different stream must not leak into chat listings.
	s.Append(ctx, p.ID, domain.StreamSearch, domain.EntryPayload{Request: "weather"})

	entries, err := s.List(ctx, p.ID, domain.StreamChat, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 chat entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.CreatedAt.Before(prev.CreatedAt) {
			t.Errorf("created_at not non-decreasing at %d", i)
		}
		if cur.ID <= prev.ID {
			t.Errorf("entry ids not strictly increasing at %d", i)
		}
	}
}

func TestList_SinceCursorNeverRedelivers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.CreatePerson(ctx, "Ana", "", "")
	for i := 0; i < 6; i++ {
		s.Append(ctx, p.ID, domain.StreamChat, domain.EntryPayload{Request: fmt.Sprintf("msg %d", i)})
	}

	seen := make(map[int64]bool)
	var cursor int64
	for {
		batch, err := s.List(ctx, p.ID, domain.StreamChat, cursor, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(batch) == 0 {
			break
		}
		for _, e := range batch {
			if seen[e.ID] {
				t.Fatalf("entry %d delivered twice", e.ID)
			}
			seen[e.ID] = true
		}
		cursor = batch[len(batch)-1].ID
	}
	if len(seen) != 6 {
		t.Fatalf("expected 6 distinct entries, got %d", len(seen))
	}
}

func TestList_IsolatedPerPerson(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1, _ := s.CreatePerson(ctx, "Ana", "", "")
	p2, _ := s.CreatePerson(ctx, "Ben", "", "")
	s.Append(ctx, p1.ID, domain.StreamChat, domain.EntryPayload{Request: "ana says"})
	s.Append(ctx, p2.ID, domain.StreamChat, domain.EntryPayload{Request: "ben says"})

	entries, err := s.List(ctx, p1.ID, domain.StreamChat, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Request != "ana says" {
		t.Fatalf("expected only ana's entry, got %+v", entries)
	}
}

func TestCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.CreatePerson(ctx, "Ana", "", "")
	s.Append(ctx, p.ID, domain.StreamFile, domain.EntryPayload{Filename: "a.png"})

	persons, err := s.CountPersons(ctx)
	if err != nil || persons != 1 {
		t.Fatalf("persons=%d err=%v", persons, err)
	}
	files, err := s.CountEntries(ctx, domain.StreamFile)
	if err != nil || files != 1 {
		t.Fatalf("files=%d err=%v", files, err)
	}
}
