package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/j-veylop/orbwatch/internal/logger"
	"github.com/j-veylop/orbwatch/internal/models"
)

const defaultCooldown = 5 * time.Minute

// Options configures a Notifier.
type Options struct {
	Low            uint
	Critical       uint
	Cooldown       time.Duration
	Enabled        bool
	NotifyOnChange bool
}

// Notifier evaluates alert rules and delivers desktop notifications.
// The cooldown map is shared between the periodic cycle and manual
// refreshes, so all access goes through the mutex.
type Notifier struct {
	mu             sync.Mutex
	lastFired      map[string]time.Time
	cooldown       time.Duration
	low            uint
	critical       uint
	enabled        bool
	notifyOnChange bool
	send           func(level models.AlertLevel, title, message string) error
}

// New creates a notifier.
func New(opts Options) *Notifier {
	cooldown := opts.Cooldown
	if cooldown == 0 {
		cooldown = defaultCooldown
	}

	return &Notifier{
		lastFired:      make(map[string]time.Time),
		cooldown:       cooldown,
		low:            opts.Low,
		critical:       opts.Critical,
		enabled:        opts.Enabled,
		notifyOnChange: opts.NotifyOnChange,
		send:           sendDesktop,
	}
}

// CheckAndSend evaluates all rules and delivers whatever is not inside
// its cooldown window. Returns the alerts that were actually sent.
func (n *Notifier) CheckAndSend(a *models.UsageAnalytics, balance uint) []models.Alert {
	if !n.enabled || a == nil {
		return nil
	}

	var fired []models.Alert
	for _, alert := range Evaluate(a, balance, n.low, n.critical) {
		if !n.takeSlot(alert.Rule) {
			continue
		}

		if err := n.send(alert.Level, alertTitle(alert.Level), alert.Message); err != nil {
			// Delivery failures are not retried this cycle; clearing
			// the slot lets the next cycle try again.
			logger.Warn("failed to deliver alert", "rule", alert.Rule, "error", err)
			n.clearSlot(alert.Rule)
			continue
		}

		logger.Info("alert sent", "rule", alert.Rule, "level", alert.Level.String())
		fired = append(fired, alert)
	}
	return fired
}

// BalanceUpdate sends an informational toast describing a balance
// change. Gated behind NotifyOnChange so routine cycles stay quiet.
func (n *Notifier) BalanceUpdate(current uint, previous *uint) {
	if !n.enabled || !n.notifyOnChange {
		return
	}

	message := fmt.Sprintf("Current balance: %d credits", current)
	if previous != nil && *previous != current {
		if *previous > current {
			message = fmt.Sprintf("Balance: %d credits (down %d)", current, *previous-current)
		} else {
			message = fmt.Sprintf("Balance: %d credits (up %d)", current, current-*previous)
		}
	}

	if err := n.send(models.AlertInfo, "Balance Updated", message); err != nil {
		logger.Warn("failed to deliver balance update", "error", err)
	}
}

// takeSlot marks a rule as fired if its cooldown has elapsed.
func (n *Notifier) takeSlot(rule string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if last, ok := n.lastFired[rule]; ok && time.Since(last) < n.cooldown {
		return false
	}
	n.lastFired[rule] = time.Now()
	return true
}

func (n *Notifier) clearSlot(rule string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.lastFired, rule)
}

func alertTitle(level models.AlertLevel) string {
	switch level {
	case models.AlertCritical:
		return "Credit Balance Critical"
	case models.AlertWarning:
		return "Credit Balance Warning"
	default:
		return "Credit Balance"
	}
}

func sendDesktop(level models.AlertLevel, title, message string) error {
	if level == models.AlertCritical {
		return beeep.Alert(title, message, "")
	}
	return beeep.Notify(title, message, "")
}
