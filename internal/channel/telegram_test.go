package channel

import (
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSplitMessage_ShortTextSingleChunk(t *testing.T) {
	chunks := splitMessage("hello", 4000)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}

func TestSplitMessage_PrefersNewlineBoundary(t *testing.T) {
	text := strings.Repeat("a", 3000) + "\n" + strings.Repeat("b", 2000)
	chunks := splitMessage(text, 4000)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "a") || strings.Contains(chunks[0], "b") {
		t.Errorf("first chunk should end at the newline: %q...", chunks[0][:10])
	}
	for _, c := range chunks {
		if len(c) > 4000 {
			t.Errorf("chunk exceeds limit: %d", len(c))
		}
	}
}

func TestSplitMessage_HardCutWithoutNewlines(t *testing.T) {
	text := strings.Repeat("x", 9000)
	chunks := splitMessage(text, 4000)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	var total int
	for _, c := range chunks {
		total += len(c)
		if len(c) > 4000 {
			t.Errorf("chunk exceeds limit: %d", len(c))
		}
	}
	if total != 9000 {
		t.Errorf("chunks lost content: %d", total)
	}
}

func TestNewTelegram_ParsesAllowList(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	tg := NewTelegram(TelegramAdapterConfig{
		Token:     "123:abc",
		AllowFrom: []string{"42", " 99 ", "not-a-number"},
		Logger:    logger,
	})

	if !tg.isAllowed(42) || !tg.isAllowed(99) {
		t.Error("listed ids must be allowed")
	}
	if tg.isAllowed(7) {
		t.Error("unlisted id must be rejected when an allow list is set")
	}

	open := NewTelegram(TelegramAdapterConfig{Token: "123:abc", Logger: logger})
	if !open.isAllowed(7) {
		t.Error("empty allow list must allow everyone")
	}
}
