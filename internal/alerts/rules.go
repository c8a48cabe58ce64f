// Package alerts turns analytics into deduplicated desktop
// notifications with a per-rule cooldown.
package alerts

import (
	"fmt"

	"github.com/j-veylop/orbwatch/internal/models"
)

// Rule identifiers. The cooldown is keyed by these, not by message
// content, so a repeating rule stays quiet even as the numbers change.
const (
	RuleCriticalBalance = "critical_balance"
	RuleLowBalance      = "low_balance"
	RuleTimeCritical    = "time_critical"
	RuleTimeWarning     = "time_warning"
	RuleHighUsage       = "high_usage"
)

// Evaluate runs the alert rules over a set of analytics and returns
// every alert that would fire, ignoring cooldowns. Rules are
// independent except that critical balance suppresses low balance and
// critical depletion time suppresses the warning flavor.
func Evaluate(a *models.UsageAnalytics, balance uint, low, critical uint) []models.Alert {
	var alerts []models.Alert

	switch {
	case balance <= critical:
		alerts = append(alerts, models.Alert{
			Rule:    RuleCriticalBalance,
			Level:   models.AlertCritical,
			Message: fmt.Sprintf("Only %d credits remaining", balance),
		})
	case balance <= low:
		alerts = append(alerts, models.Alert{
			Rule:    RuleLowBalance,
			Level:   models.AlertWarning,
			Message: fmt.Sprintf("%d credits remaining", balance),
		})
	}

	if a.EstimatedHoursRemaining != nil {
		hours := *a.EstimatedHoursRemaining
		switch {
		case hours <= 2:
			alerts = append(alerts, models.Alert{
				Rule:           RuleTimeCritical,
				Level:          models.AlertCritical,
				Message:        fmt.Sprintf("Credits run out in about %.1f hours at the current rate", hours),
				HoursRemaining: &hours,
			})
		case hours <= 24:
			alerts = append(alerts, models.Alert{
				Rule:           RuleTimeWarning,
				Level:          models.AlertWarning,
				Message:        fmt.Sprintf("Credits run out in about %.1f hours at the current rate", hours),
				HoursRemaining: &hours,
			})
		}
	}

	if a.UsageRatePerHour > 0 && a.UsageRatePerHour > 2*a.AverageSessionUsage {
		alerts = append(alerts, models.Alert{
			Rule:    RuleHighUsage,
			Level:   models.AlertWarning,
			Message: fmt.Sprintf("High usage detected: %.0f credits/hour", a.UsageRatePerHour),
		})
	}

	return alerts
}
