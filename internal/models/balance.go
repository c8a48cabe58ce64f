// Package models defines data structures and domain types.
package models

import "time"

// Balance extraction sources, recorded on each snapshot.
const (
	SourceAPI     = "api"
	SourceBrowser = "browser"
	SourceHTTP    = "http"
)

// BalanceSnapshot represents a point-in-time credit balance reading (DB model).
type BalanceSnapshot struct {
	ID        string
	Amount    uint
	Timestamp time.Time
	Source    string
}

// UsageRecord represents credits consumed between two consecutive
// snapshots. Records are derived on insert whenever the balance
// strictly decreases.
type UsageRecord struct {
	ID              string
	StartBalance    uint
	EndBalance      uint
	UsageAmount     uint
	DurationMinutes uint
	Timestamp       time.Time
}
