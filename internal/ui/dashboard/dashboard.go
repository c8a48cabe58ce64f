// Package dashboard renders the single-screen balance overview.
package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/orbwatch/internal/models"
	"github.com/j-veylop/orbwatch/internal/ui/components"
	"github.com/j-veylop/orbwatch/internal/ui/styles"
)

// Model holds everything the dashboard needs to render. The app shell
// feeds it fresh data on every monitor event and window switch.
type Model struct {
	width    int
	height   int
	window   models.TimeRange
	low      uint
	critical uint

	snapshot  *models.BalanceSnapshot
	analytics *models.UsageAnalytics
	alerts    []models.Alert
	lastError error
}

// New creates a dashboard with the given alert thresholds.
func New(low, critical uint) Model {
	return Model{
		window:   models.TimeRange24Hours,
		low:      low,
		critical: critical,
	}
}

// SetSize sets the available render area.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetWindow switches the analytics window label.
func (m *Model) SetWindow(window models.TimeRange) {
	m.window = window
}

// Window returns the current analytics window.
func (m Model) Window() models.TimeRange {
	return m.window
}

// SetData replaces the rendered snapshot, analytics, and alerts.
func (m *Model) SetData(snapshot *models.BalanceSnapshot, analytics *models.UsageAnalytics, alerts []models.Alert) {
	m.snapshot = snapshot
	m.analytics = analytics
	if alerts != nil {
		m.alerts = alerts
	}
	m.lastError = nil
}

// SetError records a failed cycle. Existing data keeps rendering.
func (m *Model) SetError(err error) {
	m.lastError = err
}

// HasData reports whether at least one reading has arrived.
func (m Model) HasData() bool {
	return m.analytics != nil
}

// View renders the dashboard.
func (m Model) View() string {
	var sections []string

	sections = append(sections, m.renderBalanceCard())
	sections = append(sections, m.renderUsageCard())
	sections = append(sections, m.renderChartCard())

	if alerts := m.renderAlerts(); alerts != "" {
		sections = append(sections, alerts)
	}
	if m.lastError != nil {
		sections = append(sections,
			styles.ErrorTextStyle.Render(fmt.Sprintf("Last refresh failed: %v", m.lastError)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderBalanceCard() string {
	var lines []string
	lines = append(lines, styles.CardTitleStyle.Render("Balance"))

	if m.snapshot == nil {
		lines = append(lines, styles.HelpStyle.Render("No balance recorded yet"))
		return styles.CardStyle.Width(m.cardWidth()).Render(strings.Join(lines, "\n"))
	}

	balanceStyle := styles.GetBalanceStyle(m.snapshot.Amount, m.low, m.critical)
	lines = append(lines, balanceStyle.Render(fmt.Sprintf("%d credits", m.snapshot.Amount)))
	lines = append(lines, "")
	lines = append(lines, m.metric("Source", m.snapshot.Source))
	lines = append(lines, m.metric("As of", m.snapshot.Timestamp.Local().Format("Jan 2 15:04:05")))

	if a := m.analytics; a != nil {
		if a.EstimatedHoursRemaining != nil {
			lines = append(lines, m.metric("Runs out in", formatDuration(*a.EstimatedHoursRemaining)))
		} else {
			lines = append(lines, m.metric("Runs out in", "no usage observed"))
		}
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(strings.Join(lines, "\n"))
}

func (m Model) renderUsageCard() string {
	var lines []string
	lines = append(lines, styles.CardTitleStyle.Render(fmt.Sprintf("Usage (%s)", m.window)))

	a := m.analytics
	if a == nil {
		lines = append(lines, styles.HelpStyle.Render("Waiting for first reading..."))
		return styles.CardStyle.Width(m.cardWidth()).Render(strings.Join(lines, "\n"))
	}

	lines = append(lines, m.metric("Rate", fmt.Sprintf("%.1f credits/hour", a.UsageRatePerHour)))
	lines = append(lines, m.metric("Trend", trendLabel(a.Trend)))
	lines = append(lines, m.metric("Efficiency", fmt.Sprintf("%.0f/100", a.EfficiencyScore)))
	lines = append(lines, m.metric("Avg session", fmt.Sprintf("%.1f credits", a.AverageSessionUsage)))

	if a.PeakUsageHour != nil {
		lines = append(lines, m.metric("Peak hour", fmt.Sprintf("%02d:00", *a.PeakUsageHour)))
		lines = append(lines, "")
		lines = append(lines, components.RenderHourlyHeatmap(hourlyBuckets(a.UsageHistory)))
	} else {
		lines = append(lines, m.metric("Peak hour", "n/a"))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(strings.Join(lines, "\n"))
}

func (m Model) renderChartCard() string {
	var lines []string
	lines = append(lines, styles.CardTitleStyle.Render("Balance History"))

	var series []float64
	if m.analytics != nil {
		for _, p := range m.analytics.BalanceHistory {
			series = append(series, float64(p.Balance))
		}
	}

	chartWidth := m.cardWidth() - 14
	if chartWidth < 20 {
		chartWidth = 20
	}
	lines = append(lines, components.RenderLineChart(series, chartWidth, 8, m.window.String()))

	if len(series) > 1 {
		lines = append(lines, "")
		lines = append(lines, styles.HelpStyle.Render("usage ")+
			components.RenderSparkline(usageSeries(m.analytics.UsageHistory), chartWidth))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(strings.Join(lines, "\n"))
}

func (m Model) renderAlerts() string {
	if len(m.alerts) == 0 {
		return ""
	}

	var lines []string
	lines = append(lines, styles.CardTitleStyle.Render("Active Alerts"))
	for _, alert := range m.alerts {
		style := styles.GetAlertStyle(alert.Level.String())
		lines = append(lines, style.Render(fmt.Sprintf("[%s] %s", strings.ToUpper(alert.Level.String()), alert.Message)))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(strings.Join(lines, "\n"))
}

func (m Model) metric(label, value string) string {
	return styles.LabelStyle.Render(label) + styles.ValueStyle.Render(value)
}

func (m Model) cardWidth() int {
	if m.width <= 0 {
		return 60
	}
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	return w
}

func trendLabel(t models.Trend) string {
	switch t {
	case models.TrendIncreasing:
		return "↑ " + t.String()
	case models.TrendDecreasing:
		return "↓ " + t.String()
	default:
		return t.String()
	}
}

func formatDuration(hours float64) string {
	if hours >= 48 {
		return fmt.Sprintf("%.1f days", hours/24)
	}
	return fmt.Sprintf("%.1f hours", hours)
}

func hourlyBuckets(usage []models.UsagePoint) []float64 {
	buckets := make([]float64, 24)
	for _, u := range usage {
		buckets[u.Timestamp.Hour()] += float64(u.UsageAmount)
	}
	return buckets
}

func usageSeries(usage []models.UsagePoint) []float64 {
	series := make([]float64, 0, len(usage))
	for _, u := range usage {
		series = append(series, float64(u.UsageAmount))
	}
	return series
}
