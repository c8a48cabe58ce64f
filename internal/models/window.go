// Package models defines data structures and domain types.
package models

// TimeRange represents the selected analytics time window.
type TimeRange int

const (
	// TimeRange24Hours shows data from the last 24 hours.
	TimeRange24Hours TimeRange = iota
	// TimeRange7Days shows data from the last 7 days.
	TimeRange7Days
	// TimeRange30Days shows data from the last 30 days.
	TimeRange30Days
)

// String returns the display name for a time range.
func (t TimeRange) String() string {
	switch t {
	case TimeRange24Hours:
		return "24 Hours"
	case TimeRange7Days:
		return "7 Days"
	case TimeRange30Days:
		return "30 Days"
	default:
		return "Unknown"
	}
}

// Hours returns the window size in hours.
func (t TimeRange) Hours() int {
	switch t {
	case TimeRange24Hours:
		return 24
	case TimeRange7Days:
		return 7 * 24
	case TimeRange30Days:
		return 30 * 24
	default:
		return 24
	}
}

// Next cycles to the next time range.
func (t TimeRange) Next() TimeRange {
	return (t + 1) % 3
}
