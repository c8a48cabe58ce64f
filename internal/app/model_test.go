package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/orbwatch/internal/alerts"
	"github.com/j-veylop/orbwatch/internal/analytics"
	"github.com/j-veylop/orbwatch/internal/config"
	"github.com/j-veylop/orbwatch/internal/db"
	"github.com/j-veylop/orbwatch/internal/models"
	"github.com/j-veylop/orbwatch/internal/monitor"
)

type stubExtractor struct{}

func (stubExtractor) FetchBalance(ctx context.Context, token string) (uint, string, error) {
	return 1000, models.SourceAPI, nil
}

func newTestModel(t *testing.T) (*Model, *db.DB) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := &config.Config{
		PortalToken:       "tok",
		PollInterval:      time.Hour,
		LowThreshold:      500,
		CriticalThreshold: 100,
		RetentionDays:     30,
	}

	notifier := alerts.New(alerts.Options{
		Low:      cfg.LowThreshold,
		Critical: cfg.CriticalThreshold,
	})
	mon := monitor.New(cfg, stubExtractor{}, database, analytics.New(database), notifier)

	return NewModel(cfg, mon), database
}

func keyMsg(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestUpdate_QuitKey(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(keyMsg('q'))
	if cmd == nil {
		t.Fatal("quit key should produce a command")
	}
	if msg := cmd(); msg == nil {
		t.Error("quit command returned nil message")
	}
}

func TestUpdate_HelpToggle(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	m.Update(keyMsg('?'))
	if !m.showHelp {
		t.Fatal("help should be visible after ?")
	}
	if !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Error("help view missing shortcut list")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.showHelp {
		t.Error("escape should close help")
	}
}

func TestUpdate_WindowCycle(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(keyMsg('w'))
	if m.dashboard.Window() != models.TimeRange7Days {
		t.Errorf("window = %v, want 7 days", m.dashboard.Window())
	}
	if cmd == nil {
		t.Error("window switch should reload data")
	}
}

func TestUpdate_WindowData(t *testing.T) {
	m, database := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	if _, err := database.RecordBalance(750, models.SourceAPI); err != nil {
		t.Fatal(err)
	}

	cmd := m.loadWindow()
	msg, ok := cmd().(WindowDataMsg)
	if !ok {
		t.Fatalf("loadWindow returned %T", cmd())
	}
	if msg.Err != nil {
		t.Fatalf("loadWindow failed: %v", msg.Err)
	}

	m.Update(msg)
	if !m.dashboard.HasData() {
		t.Fatal("dashboard should have data after WindowDataMsg")
	}
	if !strings.Contains(m.View(), "750 credits") {
		t.Error("view missing the stored balance")
	}
}

func TestUpdate_CycleErrorEvent(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	_, cmd := m.Update(MonitorEventMsg{Event: monitor.CycleErrorEvent{
		Err: errors.New("portal unreachable"),
	}})
	if cmd == nil {
		t.Error("event handling should re-issue the subscription wait")
	}
	if m.status != "Refresh failed" {
		t.Errorf("status = %q, want refresh failure", m.status)
	}
	if !strings.Contains(m.View(), "portal unreachable") {
		t.Error("view missing the cycle error")
	}
}

func TestView_BeforeReady(t *testing.T) {
	m, _ := newTestModel(t)

	if !strings.Contains(m.View(), "Loading") {
		t.Error("pre-ready view should show the loading spinner")
	}
}
