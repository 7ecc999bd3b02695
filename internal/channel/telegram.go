package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"assistbot/internal/domain"
	"assistbot/internal/reconcile"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
	telegramUpdateTimeout  = 30
	fileDownloadTimeout    = 60 * time.Second
)

// Telegram is the bot adapter. It long-polls for updates, resolves each
// sender to a person through the shared service, and sends replies back.
type Telegram struct {
	token     string
	allowFrom []int64 // allowed user IDs (empty = allow all)
	svc       Service
	logger    *slog.Logger

	bot   *tgbotapi.BotAPI
	files *http.Client
}

type TelegramAdapterConfig struct {
	Token     string
	AllowFrom []string // user IDs as strings
	Service   Service
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramAdapterConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		svc:       cfg.Service,
		logger:    cfg.Logger,
		files:     &http.Client{Timeout: fileDownloadTimeout},
	}
}

func (t *Telegram) Name() string { return "bot" }

// Start connects to Telegram and begins polling for updates.
func (t *Telegram) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegramUpdateTimeout
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram adapter stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

// Stop is a no-op: the bot stops when Start's context is cancelled, and
// calling StopReceivingUpdates twice panics.
func (t *Telegram) Stop() error {
	return nil
}

func (t *Telegram) Send(ctx context.Context, chatID string, content string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	t.sendMessage(id, content)
	return nil
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}
	msg := update.Message
	chatID := msg.Chat.ID

	if !t.isAllowed(msg.From.ID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", msg.From.ID,
			"username", msg.From.UserName,
		)
		t.sendMessage(chatID, "Unauthorized. Your user ID is not in the allow list.")
		return
	}

	if msg.IsCommand() {
		t.handleCommand(ctx, chatID, msg)
		return
	}

	if len(msg.Photo) > 0 || msg.Document != nil {
		t.handleFile(ctx, chatID, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	person, ok := t.requirePerson(ctx, chatID)
	if !ok {
		return
	}

	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, _ = t.bot.Send(typing)

	entry, err := t.svc.Chat(ctx, person.ID, text)
	if err != nil {
		t.sendFailure(chatID, err)
		return
	}
	t.sendMessage(chatID, entry.Response)
}

func (t *Telegram) handleCommand(ctx context.Context, chatID int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		t.sendMessage(chatID, "Hello! I'm Assistbot.\n\nCommands:\n/register <name> — Register or link your account\n/search <query> — Search the web\n/help — Show help\n\nOnce registered, just send me a message, a photo, or a document.")
	case "help":
		t.sendMessage(chatID, "Send me any message and I'll respond.\nSend a photo or PDF and I'll describe it.\n\nCommands:\n/register <name> — Register or link your account\n/search <query> — Web search with a summary")
	case "register":
		t.handleRegister(ctx, chatID, msg)
	case "search":
		query := strings.TrimSpace(msg.CommandArguments())
		if query == "" {
			t.sendMessage(chatID, "Usage: /search <query>")
			return
		}
		person, ok := t.requirePerson(ctx, chatID)
		if !ok {
			return
		}
		typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
		_, _ = t.bot.Send(typing)
		entry, err := t.svc.Search(ctx, person.ID, query)
		if err != nil {
			t.sendFailure(chatID, err)
			return
		}
		t.sendMessage(chatID, entry.Response)
	default:
		t.sendMessage(chatID, "Unknown command. Type /help for available commands.")
	}
}

// handleRegister runs the reconciliation policy with the Telegram username
// as the cross-channel handle, so a person who registered on the web with
// the same handle resolves to the same record.
func (t *Telegram) handleRegister(ctx context.Context, chatID int64, msg *tgbotapi.Message) {
	displayName := strings.TrimSpace(msg.CommandArguments())
	if displayName == "" {
		displayName = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	}

	person, err := t.svc.Register(ctx, reconcile.Registration{
		Kind:        domain.ChannelBot,
		Address:     strconv.FormatInt(chatID, 10),
		DisplayName: displayName,
		Handle:      msg.From.UserName,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			t.sendMessage(chatID, "Registration failed: that handle or chat is already linked to another account.")
			return
		}
		t.sendFailure(chatID, err)
		return
	}
	t.sendMessage(chatID, fmt.Sprintf("Registered as %s. You're all set — just send me a message.", person.DisplayName))
}

func (t *Telegram) handleFile(ctx context.Context, chatID int64, msg *tgbotapi.Message) {
	person, ok := t.requirePerson(ctx, chatID)
	if !ok {
		return
	}

	var fileID, filename, mediaKind string
	switch {
	case len(msg.Photo) > 0:
		// Telegram sends multiple sizes; the last one is the largest.
		fileID = msg.Photo[len(msg.Photo)-1].FileID
		filename = fileID + ".jpg"
		mediaKind = "image/jpeg"
	case msg.Document != nil:
		fileID = msg.Document.FileID
		filename = msg.Document.FileName
		mediaKind = msg.Document.MimeType
	}

	data, err := t.downloadFile(ctx, fileID)
	if err != nil {
		t.logger.Error("telegram file download failed", "file_id", fileID, "err", err)
		t.sendMessage(chatID, "Could not download that file, please try again.")
		return
	}

	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadDocument)
	_, _ = t.bot.Send(typing)

	entry, err := t.svc.AnalyzeUpload(ctx, person.ID, filename, mediaKind, data)
	if err != nil {
		t.sendFailure(chatID, err)
		return
	}
	t.sendMessage(chatID, entry.Description)
}

func (t *Telegram) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.files.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// requirePerson resolves the chat to a registered person. Unregistered
// callers are told to /register; no person is created implicitly.
func (t *Telegram) requirePerson(ctx context.Context, chatID int64) (*domain.Person, bool) {
	person, err := t.svc.ResolveIdentity(ctx, domain.ChannelBot, strconv.FormatInt(chatID, 10))
	if err == nil {
		return person, true
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.sendMessage(chatID, "You're not registered yet. Use /register <name> first.")
	} else {
		t.sendFailure(chatID, err)
	}
	return nil, false
}

func (t *Telegram) sendFailure(chatID int64, err error) {
	t.logger.Warn("telegram interaction failed", "chat_id", chatID, "err", err)
	switch {
	case errors.Is(err, domain.ErrValidation):
		t.sendMessage(chatID, "Invalid request: "+err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		t.sendMessage(chatID, "I'm being rate limited right now, please try again in a moment.")
	default:
		t.sendMessage(chatID, "Something went wrong on my side, please try again.")
	}
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

func (t *Telegram) sendMessage(chatID int64, text string) {
	for _, chunk := range splitMessage(text, telegramMaxMsgLen) {
		t.sendChunk(chatID, chunk)
	}
}

// splitMessage breaks text into chunks below Telegram's 4096 char limit,
// preferring newline boundaries.
func splitMessage(text string, max int) []string {
	var chunks []string
	for len(text) > 0 {
		chunk := text
		if len(chunk) > max {
			cutAt := strings.LastIndex(chunk[:max], "\n")
			if cutAt < max/2 {
				cutAt = max
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// sendChunk sends a single message chunk with backoff on Telegram-side rate
// limiting.
func (t *Telegram) sendChunk(chatID int64, text string) {
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		if strings.Contains(err.Error(), "Too Many Requests") || strings.Contains(err.Error(), "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1,
			)
			time.Sleep(retryAfter)
			continue
		}

		t.logger.Error("telegram send failed", "chat_id", chatID, "err", err)
		return
	}
}
