package channel

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"assistbot/internal/domain"
	"assistbot/internal/metrics"
	"assistbot/internal/reconcile"
)

const (
	maxFormSize       = 25 << 20
	maxBodySize       = 1 << 20
	sessionCookieName = "assistbot_session"
	sessionMaxAge     = 86400 * 30 // 30 days
)

// Web is the REST adapter consumed by the browser dashboard.
type Web struct {
	host        string
	port        int
	corsOrigins []string
	svc         Service
	logger      *slog.Logger
	server      *http.Server
	version     string
	requests    *metrics.Counter
}

type WebAdapterConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
	Service     Service
	Version     string
	Logger      *slog.Logger
}

func NewWeb(cfg WebAdapterConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Web{
		host:        cfg.Host,
		port:        cfg.Port,
		corsOrigins: cfg.CORSOrigins,
		svc:         cfg.Service,
		logger:      cfg.Logger,
		version:     cfg.Version,
		requests:    metrics.Collector.GetCounter("assistbot_web_requests_total", "HTTP requests handled by the web adapter"),
	}
}

func (w *Web) Name() string { return "web" }

// Handler builds the route table. Separate from Start for tests.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/", w.handleRoot)
	mux.HandleFunc("GET /api/health", w.handleHealth)
	mux.HandleFunc("POST /api/users", w.handleRegister)
	mux.HandleFunc("GET /api/users/{id}", w.handleGetUser)
	mux.HandleFunc("POST /api/chat", w.handleChat)
	mux.HandleFunc("GET /api/chat/{id}", w.handleHistory(domain.StreamChat))
	mux.HandleFunc("POST /api/upload", w.handleUpload)
	mux.HandleFunc("GET /api/files/{id}", w.handleHistory(domain.StreamFile))
	mux.HandleFunc("POST /api/websearch", w.handleSearch)
	mux.HandleFunc("GET /api/search/{id}", w.handleHistory(domain.StreamSearch))
	mux.Handle("GET /metrics", metrics.Collector.Handler())

	return w.cors(mux)
}

// Start serves until ctx is cancelled.
func (w *Web) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", w.host, w.port)
	w.server = &http.Server{
		Addr:    addr,
		Handler: w.Handler(),
	}

	w.logger.Info("web adapter started", "addr", "http://"+addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w.server.Shutdown(shutdownCtx)
	}()

	if err := w.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (w *Web) Stop() error {
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

func (w *Web) cors(next http.Handler) http.Handler {
	allowed := "*"
	if len(w.corsOrigins) > 0 {
		allowed = strings.Join(w.corsOrigins, ", ")
	}
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w.requests.Inc()
		rw.Header().Set("Access-Control-Allow-Origin", allowed)
		rw.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		rw.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			rw.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

// getOrCreateSession returns a persistent session ID from cookies. The
// session ID is the web channel's address in the identity store.
func (w *Web) getOrCreateSession(r *http.Request, rw http.ResponseWriter) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		w.logger.Warn("rand.Read failed, using fallback session ID", "err", err)
		return fmt.Sprintf("web_%d", time.Now().UnixNano())
	}
	sessionID := "web_" + hex.EncodeToString(b)

	http.SetCookie(rw, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID
}

func (w *Web) handleRoot(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]string{"message": "Assistbot API is running!"})
}

func (w *Web) handleHealth(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]string{
		"status":    "healthy",
		"version":   w.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (w *Web) handleRegister(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
		Handle      string `json:"handle"`
		Phone       string `json:"phone"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(rw, w.logger, err)
		return
	}

	person, err := w.svc.Register(r.Context(), reconcile.Registration{
		Kind:        domain.ChannelWeb,
		Address:     w.getOrCreateSession(r, rw),
		DisplayName: req.DisplayName,
		Handle:      req.Handle,
		Phone:       req.Phone,
	})
	if err != nil {
		writeError(rw, w.logger, err)
		return
	}
	writeJSON(rw, http.StatusOK, person)
}

func (w *Web) handleGetUser(rw http.ResponseWriter, r *http.Request) {
	person, err := w.svc.Person(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(rw, w.logger, err)
		return
	}
	writeJSON(rw, http.StatusOK, person)
}

func (w *Web) handleChat(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		PersonID string `json:"person_id"`
		Message  string `json:"message"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(rw, w.logger, err)
		return
	}

	entry, err := w.svc.Chat(r.Context(), req.PersonID, req.Message)
	if err != nil {
		writeError(rw, w.logger, err)
		return
	}
	writeJSON(rw, http.StatusOK, entry)
}

func (w *Web) handleSearch(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		PersonID string `json:"person_id"`
		Query    string `json:"query"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(rw, w.logger, err)
		return
	}

	entry, err := w.svc.Search(r.Context(), req.PersonID, req.Query)
	if err != nil {
		writeError(rw, w.logger, err)
		return
	}
	writeJSON(rw, http.StatusOK, entry)
}

func (w *Web) handleUpload(rw http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		writeError(rw, w.logger, fmt.Errorf("bad multipart form: %w", domain.ErrValidation))
		return
	}
	personID := r.FormValue("person_id")

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(rw, w.logger, fmt.Errorf("file field required: %w", domain.ErrValidation))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(rw, w.logger, err)
		return
	}

	mediaKind := header.Header.Get("Content-Type")
	entry, err := w.svc.AnalyzeUpload(r.Context(), personID, header.Filename, mediaKind, data)
	if err != nil {
		writeError(rw, w.logger, err)
		return
	}
	writeJSON(rw, http.StatusOK, entry)
}

// handleHistory serves one stream's entries with optional since/limit query
// parameters for incremental reads.
func (w *Web) handleHistory(stream domain.Stream) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		entries, err := w.svc.History(r.Context(), r.PathValue("id"), stream, since, limit)
		if err != nil {
			writeError(rw, w.logger, err)
			return
		}
		if entries == nil {
			entries = []domain.HistoryEntry{}
		}
		writeJSON(rw, http.StatusOK, entries)
	}
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	defer r.Body.Close()
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", domain.ErrValidation)
	}
	return nil
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(rw http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrServiceUnavailable), errors.Is(err, domain.ErrAnalysisFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "err", err)
	}
	writeJSON(rw, status, map[string]string{"error": err.Error()})
}
