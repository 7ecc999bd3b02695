package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"assistbot/internal/domain"
)

// Analyzer implements domain.FileAnalyzer. Images go to the vision model
// inlined as data URLs; other supported kinds get a metadata-level
// description without a remote call, since the completion endpoint cannot
// ingest their raw bytes.
type Analyzer struct {
	lm     *OpenAI
	system string
	logger *slog.Logger
}

type AnalyzerConfig struct {
	LM           *OpenAI
	SystemPrompt string
	Logger       *slog.Logger
}

func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	return &Analyzer{
		lm:     cfg.LM,
		system: cfg.SystemPrompt,
		logger: cfg.Logger,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, data []byte, mediaKind string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty file: %w", domain.ErrAnalysisFailed)
	}

	if strings.HasPrefix(mediaKind, "image/") {
		dataURL := fmt.Sprintf("data:%s;base64,%s", mediaKind, base64.StdEncoding.EncodeToString(data))
		prompt := fmt.Sprintf("Please analyze this %s file and describe its content in detail.", mediaKind)
		description, err := a.lm.CompleteWithImage(ctx, a.system, prompt, dataURL)
		if err != nil {
			a.logger.Warn("image analysis failed", "media_kind", mediaKind, "err", err)
			return "", fmt.Errorf("%v: %w", err, domain.ErrAnalysisFailed)
		}
		return description, nil
	}

	return fmt.Sprintf("%s document, %d bytes. Content analysis is not available for this media kind.",
		mediaKind, len(data)), nil
}
