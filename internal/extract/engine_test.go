package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/j-veylop/orbwatch/internal/models"
)

func newTestEngine(t *testing.T, baseURL string) *Engine {
	t.Helper()

	e := NewEngine(Options{BaseURL: baseURL, UseBrowser: false})
	e.backoffUnit = time.Millisecond
	return e
}

func TestFetchBalance_DirectAPI(t *testing.T) {
	srv := newPortalServer(t, `"2666.00"`)
	defer srv.Close()

	e := newTestEngine(t, srv.URL)
	n, source, err := e.FetchBalance(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FetchBalance failed: %v", err)
	}
	if n != 2666 {
		t.Errorf("balance = %d, want 2666", n)
	}
	if source != models.SourceAPI {
		t.Errorf("source = %q, want %q", source, models.SourceAPI)
	}
}

func TestFetchBalance_FallsBackToHTTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div>Credit balance: 1,500 User Messages</div></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := newTestEngine(t, srv.URL)
	n, source, err := e.FetchBalance(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FetchBalance failed: %v", err)
	}
	if n != 1500 {
		t.Errorf("balance = %d, want 1500", n)
	}
	if source != models.SourceHTTP {
		t.Errorf("source = %q, want %q", source, models.SourceHTTP)
	}
}

func TestFetchBalance_RetriesThenFails(t *testing.T) {
	var apiCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/customer_from_link" {
			apiCalls.Add(1)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestEngine(t, srv.URL)
	_, _, err := e.FetchBalance(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	var extractErr *ExtractError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected *ExtractError, got %T: %v", err, err)
	}
	if extractErr.Attempts != defaultRetryAttempts {
		t.Errorf("Attempts = %d, want %d", extractErr.Attempts, defaultRetryAttempts)
	}
	if got := apiCalls.Load(); got != int32(defaultRetryAttempts) {
		t.Errorf("direct API tried %d times, want %d", got, defaultRetryAttempts)
	}
}

func TestFetchBalance_AuthShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	e := newTestEngine(t, srv.URL)
	_, _, err := e.FetchBalance(context.Background(), "expired")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected no retries after auth rejection, got %d calls", calls.Load())
	}
}

func TestFetchBalance_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestEngine(t, srv.URL)
	e.backoffUnit = time.Hour // retries must abort on cancel, not sleep

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, _, err := e.FetchBalance(ctx, "tok")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr error
	}{
		{
			name:   "IndicatorPresent",
			status: http.StatusOK,
			body:   `<html><body>Your credit balance overview</body></html>`,
			want:   true,
		},
		{
			name:   "IndicatorMissing",
			status: http.StatusOK,
			body:   `<html><body>page not found</body></html>`,
			want:   false,
		},
		{
			name:    "AuthRejected",
			status:  http.StatusUnauthorized,
			wantErr: ErrAuth,
		},
		{
			name:   "NotFoundIsUnreachableNotError",
			status: http.StatusNotFound,
			want:   false,
		},
		{
			name:   "ServerErrorIsUnreachableNotError",
			status: http.StatusInternalServerError,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			e := newTestEngine(t, srv.URL)
			got, err := e.Validate(context.Background(), "tok")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFetchBalance_BrowserSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestEngine(t, srv.URL)
	e.useBrowser = true
	e.browserFetch = func(ctx context.Context, token string) (uint, error) {
		return 4321, nil
	}

	n, source, err := e.FetchBalance(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FetchBalance failed: %v", err)
	}
	if n != 4321 {
		t.Errorf("balance = %d, want 4321", n)
	}
	if source != models.SourceBrowser {
		t.Errorf("source = %q, want %q", source, models.SourceBrowser)
	}
}

func TestFetchBalance_NoHTTPFallbackWhileBrowserEnabled(t *testing.T) {
	var viewHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		viewHits.Add(1)
		// Parseable, but it is the unrendered shell and must stay unused
		fmt.Fprint(w, `<html><body><div>Credit balance: 9,999 User Messages</div></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := newTestEngine(t, srv.URL)
	e.useBrowser = true
	e.browserFetch = func(ctx context.Context, token string) (uint, error) {
		return 0, errors.New("render failed")
	}

	_, _, err := e.FetchBalance(context.Background(), "tok")

	var extractErr *ExtractError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected *ExtractError, got %T: %v", err, err)
	}
	if got := viewHits.Load(); got != 0 {
		t.Errorf("plain http path ran %d times despite browser rendering being enabled", got)
	}
}

func TestRenderedFallback(t *testing.T) {
	t.Run("RetriesPortalAPIFirst", func(t *testing.T) {
		srv := newPortalServer(t, `1750`)
		defer srv.Close()

		e := newTestEngine(t, srv.URL)
		n, err := e.renderedFallback(context.Background(), "tok",
			`<html><body>nothing useful here</body></html>`)
		if err != nil {
			t.Fatalf("renderedFallback failed: %v", err)
		}
		if n != 1750 {
			t.Errorf("balance = %d, want 1750 from the portal api", n)
		}
	})

	t.Run("ParsesPageWhenAPIFails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		e := newTestEngine(t, srv.URL)
		n, err := e.renderedFallback(context.Background(), "tok",
			`<html><body><div>Credit balance: 2,666 User Messages</div></body></html>`)
		if err != nil {
			t.Fatalf("renderedFallback failed: %v", err)
		}
		if n != 2666 {
			t.Errorf("balance = %d, want 2666 from the rendered page", n)
		}
	})

	t.Run("ErrorsWhenNothingMatches", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		e := newTestEngine(t, srv.URL)
		if _, err := e.renderedFallback(context.Background(), "tok",
			`<html><body>empty shell</body></html>`); err == nil {
			t.Fatal("expected error when neither the api nor the page yields a balance")
		}
	})
}

func TestSelectorProbe(t *testing.T) {
	js := selectorProbe(`[data-testid='balance']`)
	if js == "" {
		t.Fatal("empty probe")
	}
	// Single quotes in the selector must be escaped for the JS literal
	if want := `\'balance\'`; !strings.Contains(js, want) {
		t.Errorf("probe %q missing escaped quotes", js)
	}
}
