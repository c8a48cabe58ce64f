package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/orbwatch/internal/models"
	"github.com/j-veylop/orbwatch/internal/monitor"
)

// waitForEventCmd blocks on the subscription channel and delivers the
// next monitor event. Re-issued after every received event.
func waitForEventCmd(ch chan monitor.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return MonitorEventMsg{Event: event}
	}
}

// loadWindowCmd pulls the snapshot, analytics, and current alerts for
// the given window from the monitor.
func loadWindowCmd(mon *monitor.Monitor, window models.TimeRange, low, critical uint) tea.Cmd {
	return func() tea.Msg {
		msg := WindowDataMsg{Window: window}

		snapshot, err := mon.CurrentBalance()
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.Snapshot = snapshot

		analytics, err := mon.UsageAnalytics(window.Hours())
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.Analytics = analytics

		alerts, err := mon.BalanceAlerts(low, critical)
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.Alerts = alerts

		return msg
	}
}

// refreshCmd triggers an out-of-band fetch cycle. The result arrives
// through the event subscription, not through this command.
func refreshCmd(mon *monitor.Monitor) tea.Cmd {
	return func() tea.Msg {
		mon.RefreshNow(context.Background())
		return RefreshStartedMsg{}
	}
}
