package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
)

const browserSearchTimeout = 30 * time.Second

// BrowserSearch renders the DuckDuckGo HTML results page in headless Chrome
// and scrapes result snippets. Used as a fallback when the Instant Answer
// API has nothing for a query.
type BrowserSearch struct {
	logger *slog.Logger
}

func NewBrowserSearch(logger *slog.Logger) *BrowserSearch {
	return &BrowserSearch{logger: logger}
}

func (b *BrowserSearch) Results(ctx context.Context, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, browserSearchTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	target := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)

	var snippets []string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(target),
		chromedp.WaitVisible(".result__snippet", chromedp.ByQuery),
		chromedp.Evaluate(
			`Array.from(document.querySelectorAll('.result__snippet')).slice(0, 5).map(e => e.innerText)`,
			&snippets,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("browser search: %w", err)
	}

	b.logger.Info("browser search results", "query", query, "count", len(snippets))
	return snippets, nil
}
