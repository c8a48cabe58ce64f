// Package analytics derives usage rates, trends, and depletion
// forecasts from the balance time series. Everything here is a pure
// function of the store's contents for the requested window.
package analytics

import (
	"fmt"
	"math"

	"github.com/j-veylop/orbwatch/internal/db"
	"github.com/j-veylop/orbwatch/internal/models"
)

// Engine computes analytics over the balance store.
type Engine struct {
	db *db.DB
}

// New creates an analytics engine over the given store.
func New(database *db.DB) *Engine {
	return &Engine{db: database}
}

// UsageAnalytics aggregates rates, estimates, trend, and chart series
// for the past N hours.
func (e *Engine) UsageAnalytics(hours int) (*models.UsageAnalytics, error) {
	snapshots, err := e.db.BalanceHistory(hours)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance history: %w", err)
	}
	usage, err := e.db.UsageHistory(hours)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage history: %w", err)
	}
	latest, err := e.db.LatestBalance()
	if err != nil {
		return nil, fmt.Errorf("failed to load latest balance: %w", err)
	}

	ratePerHour := usageRatePerHour(usage)

	a := &models.UsageAnalytics{
		UsageRatePerHour:      ratePerHour,
		UsageRatePerDay:       ratePerHour * 24,
		TotalUsagePeriodHours: hours,
		AverageSessionUsage:   averageSessionUsage(usage),
		PeakUsageHour:         peakUsageHour(usage),
		Trend:                 trendOf(snapshots),
		EfficiencyScore:       efficiencyScore(usage),
		BalanceHistory:        balancePoints(snapshots),
		UsageHistory:          usagePoints(usage),
	}

	if latest != nil {
		amount := latest.Amount
		a.CurrentBalance = &amount
	}

	if a.CurrentBalance != nil && ratePerHour > 0 {
		hoursLeft := float64(*a.CurrentBalance) / ratePerHour
		daysLeft := hoursLeft / 24
		a.EstimatedHoursRemaining = &hoursLeft
		a.EstimatedDaysRemaining = &daysLeft
	}

	return a, nil
}

// PredictedUsage extrapolates the last 24 hours' rate forward.
func (e *Engine) PredictedUsage(hoursAhead int) (float64, error) {
	usage, err := e.db.UsageHistory(24)
	if err != nil {
		return 0, fmt.Errorf("failed to load usage history: %w", err)
	}
	return usageRatePerHour(usage) * float64(hoursAhead), nil
}

// usageRatePerHour is total consumption over total elapsed minutes,
// scaled to an hourly rate. No usage or zero minutes yields zero.
func usageRatePerHour(records []models.UsageRecord) float64 {
	var totalUsage, totalMinutes float64
	for _, r := range records {
		totalUsage += float64(r.UsageAmount)
		totalMinutes += float64(r.DurationMinutes)
	}
	if totalMinutes == 0 {
		return 0
	}
	return totalUsage / totalMinutes * 60
}

// trendOf classifies the balance direction via the least-squares slope
// of amount against sequence index. The ±1 dead zone absorbs noise.
func trendOf(snapshots []models.BalanceSnapshot) models.Trend {
	if len(snapshots) < 3 {
		return models.TrendInsufficient
	}

	n := float64(len(snapshots))
	var sumX, sumY, sumXY, sumXX float64
	for i, s := range snapshots {
		x := float64(i)
		y := float64(s.Amount)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return models.TrendStable
	}
	slope := (n*sumXY - sumX*sumY) / denom

	switch {
	case slope < -1:
		// Balance falling means usage rising
		return models.TrendIncreasing
	case slope > 1:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

// efficiencyScore maps the coefficient of variation of per-record
// consumption rates onto [0, 100]. Steady usage scores high.
func efficiencyScore(records []models.UsageRecord) float64 {
	if len(records) == 0 {
		return 0
	}

	rates := make([]float64, len(records))
	var sum float64
	for i, r := range records {
		rates[i] = float64(r.UsageAmount) / float64(r.DurationMinutes)
		sum += rates[i]
	}
	mean := sum / float64(len(rates))

	cv := 1.0
	if mean > 0 {
		var variance float64
		for _, rate := range rates {
			d := rate - mean
			variance += d * d
		}
		variance /= float64(len(rates))
		cv = math.Sqrt(variance) / mean
	}
	if cv > 1 {
		cv = 1
	}

	return (1 - cv) * 100
}

func averageSessionUsage(records []models.UsageRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var total float64
	for _, r := range records {
		total += float64(r.UsageAmount)
	}
	return total / float64(len(records))
}

// peakUsageHour buckets consumption by hour of day. Ties resolve to
// the lowest hour.
func peakUsageHour(records []models.UsageRecord) *int {
	if len(records) == 0 {
		return nil
	}

	var buckets [24]uint
	for _, r := range records {
		buckets[r.Timestamp.Hour()] += r.UsageAmount
	}

	best := 0
	for h := 1; h < 24; h++ {
		if buckets[h] > buckets[best] {
			best = h
		}
	}
	return &best
}

func balancePoints(snapshots []models.BalanceSnapshot) []models.BalancePoint {
	points := make([]models.BalancePoint, len(snapshots))
	for i, s := range snapshots {
		points[i] = models.BalancePoint{Timestamp: s.Timestamp, Balance: s.Amount}
	}
	return points
}

func usagePoints(records []models.UsageRecord) []models.UsagePoint {
	points := make([]models.UsagePoint, len(records))
	for i, r := range records {
		points[i] = models.UsagePoint{
			Timestamp:   r.Timestamp,
			UsageAmount: r.UsageAmount,
			RatePerHour: float64(r.UsageAmount) / float64(r.DurationMinutes) * 60,
		}
	}
	return points
}
