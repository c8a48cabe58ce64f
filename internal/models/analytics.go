// Package models defines data structures and domain types.
package models

import "time"

// Trend classifies the direction of recent usage.
type Trend string

const (
	// TrendIncreasing means usage is accelerating.
	TrendIncreasing Trend = "increasing"
	// TrendDecreasing means usage is slowing down.
	TrendDecreasing Trend = "decreasing"
	// TrendStable means usage is roughly constant.
	TrendStable Trend = "stable"
	// TrendInsufficient means there are too few records to classify.
	TrendInsufficient Trend = "insufficient_data"
)

// String returns the display name for a trend.
func (t Trend) String() string {
	switch t {
	case TrendIncreasing:
		return "Increasing"
	case TrendDecreasing:
		return "Decreasing"
	case TrendStable:
		return "Stable"
	case TrendInsufficient:
		return "Insufficient Data"
	default:
		return "Unknown"
	}
}

// BalancePoint is a single balance reading on the chart timeline.
type BalancePoint struct {
	Timestamp time.Time
	Balance   uint
}

// UsagePoint is a single usage event on the chart timeline.
type UsagePoint struct {
	Timestamp   time.Time
	UsageAmount uint
	RatePerHour float64
}

// UsageAnalytics aggregates everything derivable from a history window.
type UsageAnalytics struct {
	CurrentBalance          *uint
	UsageRatePerHour        float64
	UsageRatePerDay         float64
	EstimatedHoursRemaining *float64
	EstimatedDaysRemaining  *float64
	TotalUsagePeriodHours   int
	AverageSessionUsage     float64
	PeakUsageHour           *int
	Trend                   Trend
	EfficiencyScore         float64
	BalanceHistory          []BalancePoint
	UsageHistory            []UsagePoint
}
