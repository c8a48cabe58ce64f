package app

import (
	"github.com/j-veylop/orbwatch/internal/models"
	"github.com/j-veylop/orbwatch/internal/monitor"
)

// MonitorEventMsg wraps an event from the monitor loop.
type MonitorEventMsg struct {
	Event monitor.Event
}

// WindowDataMsg carries a freshly loaded set of data for a window.
type WindowDataMsg struct {
	Window    models.TimeRange
	Snapshot  *models.BalanceSnapshot
	Analytics *models.UsageAnalytics
	Alerts    []models.Alert
	Err       error
}

// RefreshStartedMsg signals that a manual refresh was kicked off.
type RefreshStartedMsg struct{}
