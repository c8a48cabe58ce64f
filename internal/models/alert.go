// Package models defines data structures and domain types.
package models

// AlertLevel is the severity of a balance alert.
type AlertLevel int

const (
	// AlertInfo is an informational notice.
	AlertInfo AlertLevel = iota
	// AlertWarning indicates the balance needs attention soon.
	AlertWarning
	// AlertCritical indicates the balance is nearly exhausted.
	AlertCritical
)

// String returns the display name for an alert level.
func (l AlertLevel) String() string {
	switch l {
	case AlertInfo:
		return "Info"
	case AlertWarning:
		return "Warning"
	case AlertCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// Alert is a single triggered alert condition.
type Alert struct {
	Rule           string
	Level          AlertLevel
	Message        string
	HoursRemaining *float64
}
