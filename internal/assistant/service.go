// Package assistant exposes the capability set shared by both channel
// adapters: resolve identity, register, and record interactions. Adapters
// never touch the store directly; everything goes through this service.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"assistbot/internal/config"
	"assistbot/internal/domain"
	"assistbot/internal/metrics"
	"assistbot/internal/reconcile"

	"github.com/google/uuid"
)

// Allowed upload media kinds, matching the dashboard's file picker.
var allowedMediaKinds = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

type Service struct {
	ids      domain.IdentityStore
	ledger   domain.HistoryLedger
	policy   *reconcile.Policy
	lm       domain.LanguageModel
	search   domain.SearchService
	analyzer domain.FileAnalyzer
	persona  config.Persona

	uploadsDir     string
	maxUploadBytes int64
	logger         *slog.Logger

	chatTurns    *metrics.Counter
	searches     *metrics.Counter
	uploads      *metrics.Counter
	collabErrors *metrics.Counter
}

type ServiceConfig struct {
	Identity       domain.IdentityStore
	Ledger         domain.HistoryLedger
	LM             domain.LanguageModel
	Search         domain.SearchService
	Analyzer       domain.FileAnalyzer
	Persona        config.Persona
	UploadsDir     string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

func New(cfg ServiceConfig) (*Service, error) {
	if cfg.UploadsDir != "" {
		if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
			return nil, fmt.Errorf("create uploads dir: %w", err)
		}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	return &Service{
		ids:            cfg.Identity,
		ledger:         cfg.Ledger,
		policy:         reconcile.New(cfg.Identity, cfg.Logger),
		lm:             cfg.LM,
		search:         cfg.Search,
		analyzer:       cfg.Analyzer,
		persona:        cfg.Persona,
		uploadsDir:     cfg.UploadsDir,
		maxUploadBytes: cfg.MaxUploadBytes,
		logger:         cfg.Logger,
		chatTurns:      metrics.Collector.GetCounter("assistbot_chat_turns_total", "Chat turns appended to the ledger"),
		searches:       metrics.Collector.GetCounter("assistbot_searches_total", "Search entries appended to the ledger"),
		uploads:        metrics.Collector.GetCounter("assistbot_uploads_total", "File entries appended to the ledger"),
		collabErrors:   metrics.Collector.GetCounter("assistbot_collaborator_errors_total", "Aborted interactions due to collaborator failure"),
	}, nil
}

// ResolveIdentity looks up the person bound to a channel address. A miss is
// an unregistered caller; the service never creates a person for arbitrary
// unauthenticated events.
func (s *Service) ResolveIdentity(ctx context.Context, kind domain.ChannelKind, address string) (*domain.Person, error) {
	return s.ids.FindByChannel(ctx, kind, address)
}

// Register runs the reconciliation policy for an explicit registration.
func (s *Service) Register(ctx context.Context, reg reconcile.Registration) (*domain.Person, error) {
	return s.policy.Register(ctx, reg)
}

// Person returns a person by ID.
func (s *Service) Person(ctx context.Context, id string) (*domain.Person, error) {
	return s.ids.GetPerson(ctx, id)
}

// History reads a person's stream with an optional entry-ID cursor.
func (s *Service) History(ctx context.Context, personID string, stream domain.Stream, since int64, limit int) ([]domain.HistoryEntry, error) {
	if _, err := s.ids.GetPerson(ctx, personID); err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, personID, stream, since, limit)
}

// Chat runs one chat turn: store read, collaborator call, append. The
// collaborator call happens with no store-level resources held, and a
// failure appends nothing.
func (s *Service) Chat(ctx context.Context, personID, message string) (*domain.HistoryEntry, error) {
	if message == "" {
		return nil, fmt.Errorf("empty message: %w", domain.ErrValidation)
	}
	if _, err := s.ids.GetPerson(ctx, personID); err != nil {
		return nil, err
	}

	reply, err := s.lm.Complete(ctx, s.persona.ChatPrompt, message)
	if err != nil {
		s.collabErrors.Inc()
		s.logger.Warn("chat aborted, collaborator failed", "person_id", personID, "err", err)
		return nil, err
	}

	entry, err := s.ledger.Append(ctx, personID, domain.StreamChat, domain.EntryPayload{
		Request:  message,
		Response: reply,
	})
	if err != nil {
		return nil, err
	}
	s.chatTurns.Inc()
	return entry, nil
}

// Search runs one web search and records the summary.
func (s *Service) Search(ctx context.Context, personID, query string) (*domain.HistoryEntry, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrValidation)
	}
	if _, err := s.ids.GetPerson(ctx, personID); err != nil {
		return nil, err
	}

	result, err := s.search.Search(ctx, query)
	if err != nil {
		s.collabErrors.Inc()
		s.logger.Warn("search aborted, collaborator failed", "person_id", personID, "err", err)
		return nil, err
	}

	entry, err := s.ledger.Append(ctx, personID, domain.StreamSearch, domain.EntryPayload{
		Request:  query,
		Response: result.Summary,
	})
	if err != nil {
		return nil, err
	}
	s.searches.Inc()
	return entry, nil
}

// AnalyzeUpload stores an uploaded file, runs the analysis transform, and
// records the description. A failed analysis removes the stored file and
// appends nothing.
func (s *Service) AnalyzeUpload(ctx context.Context, personID, filename, mediaKind string, data []byte) (*domain.HistoryEntry, error) {
	if !allowedMediaKinds[mediaKind] {
		return nil, fmt.Errorf("unsupported media kind %q (jpeg, png, pdf only): %w", mediaKind, domain.ErrValidation)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, fmt.Errorf("file too large: %d bytes (max %d): %w", len(data), s.maxUploadBytes, domain.ErrValidation)
	}
	if _, err := s.ids.GetPerson(ctx, personID); err != nil {
		return nil, err
	}

	storedPath := filepath.Join(s.uploadsDir, uuid.NewString()+"_"+filepath.Base(filename))
	if err := os.WriteFile(storedPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	description, err := s.analyzer.Analyze(ctx, data, mediaKind)
	if err != nil {
		os.Remove(storedPath)
		s.collabErrors.Inc()
		s.logger.Warn("upload aborted, analysis failed", "person_id", personID, "filename", filename, "err", err)
		return nil, err
	}

	entry, err := s.ledger.Append(ctx, personID, domain.StreamFile, domain.EntryPayload{
		Filename:    filename,
		MediaKind:   mediaKind,
		Description: description,
	})
	if err != nil {
		return nil, err
	}
	s.uploads.Inc()
	s.logger.Info("file analyzed", "person_id", personID, "filename", filename, "stored", storedPath)
	return entry, nil
}
