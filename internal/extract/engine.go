package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/j-veylop/orbwatch/internal/config"
	"github.com/j-veylop/orbwatch/internal/logger"
	"github.com/j-veylop/orbwatch/internal/models"
)

const defaultRetryAttempts = 3

// PatternSource yields the active extraction pattern table. A
// *config.PatternWatcher satisfies this for live-reloaded tables.
type PatternSource interface {
	Current() *config.Patterns
}

// StaticPatterns is a PatternSource over a fixed table.
type StaticPatterns struct {
	Patterns *config.Patterns
}

// Current returns the fixed table.
func (s StaticPatterns) Current() *config.Patterns {
	return s.Patterns
}

// Options configures an extraction engine.
type Options struct {
	BaseURL    string
	UseBrowser bool
	Patterns   PatternSource
	Timeout    time.Duration
}

// Engine runs the extraction cascade with retries.
type Engine struct {
	client        *http.Client
	portal        *portalClient
	patternSource PatternSource
	baseURL       string
	useBrowser    bool
	retryAttempts int
	backoffUnit   time.Duration
	browserFetch  func(ctx context.Context, token string) (uint, error)
}

// NewEngine creates an extraction engine.
func NewEngine(opts Options) *Engine {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	patterns := opts.Patterns
	if patterns == nil {
		patterns = StaticPatterns{Patterns: config.DefaultPatterns()}
	}

	client := &http.Client{Timeout: timeout}
	baseURL := strings.TrimRight(opts.BaseURL, "/")

	e := &Engine{
		client:        client,
		portal:        &portalClient{httpClient: client, baseURL: baseURL},
		patternSource: patterns,
		baseURL:       baseURL,
		useBrowser:    opts.UseBrowser,
		retryAttempts: defaultRetryAttempts,
		backoffUnit:   time.Second,
	}
	e.browserFetch = e.fetchWithBrowser
	return e
}

// FetchBalance runs the cascade until a strategy yields a sane balance,
// retrying the whole cascade with exponential backoff. Returns the
// balance and the source label of the strategy that produced it.
func (e *Engine) FetchBalance(ctx context.Context, token string) (uint, string, error) {
	var lastErr error

	for attempt := 1; attempt <= e.retryAttempts; attempt++ {
		if attempt > 1 {
			// 1s, 2s, 4s, ... between attempts
			delay := e.backoffUnit << (attempt - 2)
			logger.Info("retrying balance extraction", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return 0, "", ctx.Err()
			case <-time.After(delay):
			}
		}

		n, err := e.portal.fetchBalance(ctx, token)
		if err == nil {
			return n, models.SourceAPI, nil
		}
		if errors.Is(err, ErrAuth) {
			return 0, "", err
		}
		lastErr = err
		logger.Warn("direct portal fetch failed", "attempt", attempt, "error", err)

		// Browser rendering and the plain HTTP heuristics are mutually
		// exclusive per attempt: an unrendered SPA shell must never
		// override what a failed render already established.
		if e.useBrowser {
			n, err = e.browserFetch(ctx, token)
			if err == nil {
				return n, models.SourceBrowser, nil
			}
			lastErr = err
			logger.Warn("browser fetch failed", "attempt", attempt, "error", err)
			continue
		}

		n, err = e.fetchWithHTTP(ctx, token)
		if err == nil {
			return n, models.SourceHTTP, nil
		}
		if errors.Is(err, ErrAuth) {
			return 0, "", err
		}
		lastErr = err
		logger.Warn("plain http fetch failed", "attempt", attempt, "error", err)
	}

	return 0, "", &ExtractError{Attempts: e.retryAttempts, LastErr: lastErr}
}

// Validate checks that the credential reaches a portal page without
// fetching a balance. Auth rejections surface as ErrAuth; any other
// HTTP failure is plain unreachability, not an error.
func (e *Engine) Validate(ctx context.Context, token string) (bool, error) {
	body, err := e.getPage(ctx, e.portalURL(token), browserHeaders)
	if err != nil {
		if errors.Is(err, ErrAuth) {
			return false, err
		}
		var se *statusError
		if errors.As(err, &se) {
			return false, nil
		}
		return false, fmt.Errorf("portal validation failed: %w", err)
	}

	lower := strings.ToLower(body)
	for _, indicator := range e.patterns().Indicators {
		if strings.Contains(lower, strings.ToLower(indicator)) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) portalURL(token string) string {
	return fmt.Sprintf("%s/view?token=%s", e.baseURL, url.QueryEscape(token))
}

func (e *Engine) patterns() *config.Patterns {
	return e.patternSource.Current()
}

func (e *Engine) parser() *Parser {
	return NewParser(e.patterns())
}
