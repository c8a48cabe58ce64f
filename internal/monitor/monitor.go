// Package monitor drives the periodic fetch, store, analyze, alert
// cycle and exposes the operations the shell consumes.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/j-veylop/orbwatch/internal/alerts"
	"github.com/j-veylop/orbwatch/internal/analytics"
	"github.com/j-veylop/orbwatch/internal/config"
	"github.com/j-veylop/orbwatch/internal/db"
	"github.com/j-veylop/orbwatch/internal/logger"
	"github.com/j-veylop/orbwatch/internal/models"
)

const pruneInterval = 6 * time.Hour

type (
	// BalanceUpdatedEvent is emitted after a successful cycle.
	BalanceUpdatedEvent struct {
		Snapshot  *models.BalanceSnapshot
		Analytics *models.UsageAnalytics
		Alerts    []models.Alert
	}

	// CycleErrorEvent is emitted when a cycle fails. The last known
	// balance stays in place; nothing is overwritten with a failure.
	CycleErrorEvent struct {
		Err error
	}

	// PrunedEvent is emitted after retention pruning removed rows.
	PrunedEvent struct {
		Removed int64
	}
)

// Event is the interface implemented by all monitor events.
type Event interface {
	isEvent()
}

func (BalanceUpdatedEvent) isEvent() {}
func (CycleErrorEvent) isEvent()     {}
func (PrunedEvent) isEvent()         {}

// Extractor fetches the balance for a credential. *extract.Engine
// satisfies this.
type Extractor interface {
	FetchBalance(ctx context.Context, token string) (uint, string, error)
}

// Monitor owns the monitoring loop.
type Monitor struct {
	mu          sync.RWMutex
	extractor   Extractor
	database    *db.DB
	analytics   *analytics.Engine
	notifier    *alerts.Notifier
	cfg         *config.Config
	eventChan   chan Event
	stopChan    chan struct{}
	subscribers []chan<- Event
	lastBalance *uint
}

// New creates a monitor. Run must be called to start the loop.
func New(cfg *config.Config, extractor Extractor, database *db.DB,
	analyticsEngine *analytics.Engine, notifier *alerts.Notifier) *Monitor {
	return &Monitor{
		extractor: extractor,
		database:  database,
		analytics: analyticsEngine,
		notifier:  notifier,
		cfg:       cfg,
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
	}
}

// Run executes the monitoring loop until the context is cancelled or
// Stop is called. Timer ticks are processed sequentially, so periodic
// cycles never overlap; a tick that fires mid-cycle simply runs after.
func (m *Monitor) Run(ctx context.Context) {
	logger.Info("monitor started",
		"interval", m.cfg.PollInterval,
		"retention_days", m.cfg.RetentionDays)

	m.runCycle(ctx)
	m.prune()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	pruneTicker := time.NewTicker(pruneInterval)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ticker.C:
			m.runCycle(ctx)
		case <-pruneTicker.C:
			m.prune()
		case <-ctx.Done():
			logger.Info("monitor stopped", "reason", ctx.Err())
			return
		case <-m.stopChan:
			logger.Info("monitor stopped")
			return
		}
	}
}

// RefreshNow runs a cycle immediately without waiting for the timer.
// It runs concurrently with the periodic loop; snapshot writes and the
// alert cooldown map serialize through their own locks.
func (m *Monitor) RefreshNow(ctx context.Context) {
	go m.runCycle(ctx)
}

// Stop terminates the loop.
func (m *Monitor) Stop() {
	close(m.stopChan)
}

// Events returns the event channel.
func (m *Monitor) Events() <-chan Event {
	return m.eventChan
}

// Subscribe registers an additional event receiver.
func (m *Monitor) Subscribe() chan Event {
	ch := make(chan Event, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch
}

// CurrentBalance returns the latest stored snapshot, nil when empty.
func (m *Monitor) CurrentBalance() (*models.BalanceSnapshot, error) {
	return m.database.LatestBalance()
}

// UsageAnalytics computes analytics for the past N hours.
func (m *Monitor) UsageAnalytics(hours int) (*models.UsageAnalytics, error) {
	return m.analytics.UsageAnalytics(hours)
}

// PredictedUsage extrapolates the 24h usage rate forward.
func (m *Monitor) PredictedUsage(hoursAhead int) (float64, error) {
	return m.analytics.PredictedUsage(hoursAhead)
}

// BalanceAlerts returns the alerts that would fire for the given
// thresholds right now, without sending anything.
func (m *Monitor) BalanceAlerts(low, critical uint) ([]models.Alert, error) {
	a, err := m.analytics.UsageAnalytics(models.TimeRange24Hours.Hours())
	if err != nil {
		return nil, err
	}
	if a.CurrentBalance == nil {
		return nil, nil
	}
	return alerts.Evaluate(a, *a.CurrentBalance, low, critical), nil
}

// runCycle executes one fetch, store, analyze, alert pass.
func (m *Monitor) runCycle(ctx context.Context) {
	amount, source, err := m.extractor.FetchBalance(ctx, m.cfg.PortalToken)
	if err != nil {
		logger.Error("balance extraction failed", "error", err)
		m.broadcast(CycleErrorEvent{Err: err})
		return
	}

	previous := m.previousBalance()

	snapshot, err := m.database.RecordBalance(amount, source)
	if err != nil {
		// Storage failures do not abort the cycle; analytics and
		// alerting still run off existing history.
		logger.Error("failed to store balance snapshot", "error", err)
		snapshot = &models.BalanceSnapshot{
			Amount:    amount,
			Timestamp: time.Now().UTC(),
			Source:    source,
		}
	}

	a, err := m.analytics.UsageAnalytics(models.TimeRange24Hours.Hours())
	if err != nil {
		logger.Error("analytics computation failed", "error", err)
		m.broadcast(CycleErrorEvent{Err: err})
		return
	}

	fired := m.notifier.CheckAndSend(a, amount)
	m.notifier.BalanceUpdate(amount, previous)
	m.setPreviousBalance(amount)

	logger.Info("cycle complete",
		"balance", amount,
		"source", source,
		"alerts", len(fired))

	m.broadcast(BalanceUpdatedEvent{
		Snapshot:  snapshot,
		Analytics: a,
		Alerts:    fired,
	})
}

func (m *Monitor) prune() {
	removed, err := m.database.Prune(m.cfg.RetentionDays)
	if err != nil {
		logger.Error("retention prune failed", "error", err)
		return
	}
	if removed > 0 {
		logger.Info("pruned old records", "removed", removed)
		m.broadcast(PrunedEvent{Removed: removed})
	}
}

func (m *Monitor) previousBalance() *uint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBalance
}

func (m *Monitor) setPreviousBalance(amount uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastBalance = &amount
}

func (m *Monitor) broadcast(event Event) {
	// Send to main event channel
	select {
	case m.eventChan <- event:
	default:
	}

	// Send to subscribers
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}
