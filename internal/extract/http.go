package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/j-veylop/orbwatch/internal/logger"
)

const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

var browserHeaders = map[string]string{
	"User-Agent":                browserUserAgent,
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Cache-Control":             "no-cache",
	"Pragma":                    "no-cache",
	"Upgrade-Insecure-Requests": "1",
}

// statusError is a non-auth HTTP failure. Validate treats it as plain
// unreachability rather than an error.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("portal returned unexpected status %d", e.code)
}

// fetchWithHTTP is the last-resort strategy: fetch the portal page
// without rendering it and run the shared heuristics over the raw
// response. SPA shells rarely carry the number, but server-rendered
// portals and error-page fallbacks often do.
func (e *Engine) fetchWithHTTP(ctx context.Context, token string) (uint, error) {
	pageURL := e.portalURL(token)

	strategies := []struct {
		name    string
		url     string
		headers map[string]string
	}{
		{"minimal", pageURL, map[string]string{"User-Agent": browserUserAgent}},
		{"browser-headers", pageURL, browserHeaders},
		{"cache-bust", fmt.Sprintf("%s&_=%d", pageURL, time.Now().UnixMilli()), browserHeaders},
	}

	parser := e.parser()
	var lastErr error

	for _, strategy := range strategies {
		body, err := e.getPage(ctx, strategy.url, strategy.headers)
		if err != nil {
			if errors.Is(err, ErrAuth) {
				return 0, err
			}
			lastErr = err
			logger.Debug("plain http strategy failed", "strategy", strategy.name, "error", err)
			continue
		}

		if n, ok := parser.ExtractBalance(body); ok {
			logger.Debug("plain http strategy matched", "strategy", strategy.name, "balance", n)
			return n, nil
		}
		lastErr = errors.New("page contained no recognizable balance")
	}

	return 0, fmt.Errorf("all plain http strategies failed: %w", lastErr)
}

func (e *Engine) getPage(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("page request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("portal returned %d: %w", resp.StatusCode, ErrAuth)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	return string(body), nil
}
