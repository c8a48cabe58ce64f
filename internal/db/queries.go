package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/orbwatch/internal/models"
)

const timeFormat = "2006-01-02 15:04:05"

var timeFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05 +0000 UTC",
}

func parseTimeString(s string) (time.Time, bool) {
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RecordBalance stores a new balance snapshot and derives a usage record
// when the balance strictly decreased since the previous snapshot.
func (db *DB) RecordBalance(amount uint, source string) (*models.BalanceSnapshot, error) {
	return db.RecordBalanceAt(amount, source, time.Now().UTC())
}

// RecordBalanceAt is RecordBalance with an explicit snapshot time.
func (db *DB) RecordBalanceAt(amount uint, source string, ts time.Time) (*models.BalanceSnapshot, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	prev, err := db.LatestBalance()
	if err != nil {
		return nil, fmt.Errorf("failed to load previous snapshot: %w", err)
	}

	snapshot := &models.BalanceSnapshot{
		ID:        uuid.NewString(),
		Amount:    amount,
		Timestamp: ts.UTC(),
		Source:    source,
	}

	_, err = db.ExecContext(context.Background(),
		`INSERT INTO balance_snapshots (id, amount, timestamp, source) VALUES (?, ?, ?, ?)`,
		snapshot.ID,
		snapshot.Amount,
		snapshot.Timestamp.Format(timeFormat),
		snapshot.Source,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert balance snapshot: %w", err)
	}

	// Usage is derived only on a strict decrease. Unchanged or increased
	// balances (top-ups, refunds) produce no usage record.
	if prev != nil && prev.Amount > amount {
		if err := db.insertUsageRecord(prev, snapshot); err != nil {
			return nil, err
		}
	}

	return snapshot, nil
}

func (db *DB) insertUsageRecord(prev, cur *models.BalanceSnapshot) error {
	elapsed := cur.Timestamp.Sub(prev.Timestamp)
	if elapsed < 0 {
		// Out-of-order timestamps must not feed a negative float into
		// the uint conversion.
		elapsed = 0
	}
	minutes := uint(elapsed.Minutes())
	if minutes < 1 {
		minutes = 1
	}

	record := &models.UsageRecord{
		ID:              uuid.NewString(),
		StartBalance:    prev.Amount,
		EndBalance:      cur.Amount,
		UsageAmount:     prev.Amount - cur.Amount,
		DurationMinutes: minutes,
		Timestamp:       cur.Timestamp,
	}

	_, err := db.ExecContext(context.Background(),
		`INSERT INTO usage_records (id, start_balance, end_balance, usage_amount, duration_minutes, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.StartBalance,
		record.EndBalance,
		record.UsageAmount,
		record.DurationMinutes,
		record.Timestamp.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// LatestBalance returns the most recent snapshot, or nil when the store
// is empty.
func (db *DB) LatestBalance() (*models.BalanceSnapshot, error) {
	row := db.QueryRowContext(context.Background(),
		`SELECT id, amount, timestamp, source FROM balance_snapshots
		 ORDER BY timestamp DESC, rowid DESC LIMIT 1`)

	snapshot, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest balance: %w", err)
	}
	return snapshot, nil
}

// BalanceHistory returns snapshots within the past N hours, oldest first.
func (db *DB) BalanceHistory(hours int) ([]models.BalanceSnapshot, error) {
	rows, err := db.QueryContext(context.Background(),
		`SELECT id, amount, timestamp, source FROM balance_snapshots
		 WHERE timestamp >= datetime('now', ?)
		 ORDER BY timestamp ASC, rowid ASC`,
		fmt.Sprintf("-%d hours", hours))
	if err != nil {
		return nil, fmt.Errorf("failed to query balance history: %w", err)
	}
	defer rows.Close()

	var snapshots []models.BalanceSnapshot
	for rows.Next() {
		var (
			s     models.BalanceSnapshot
			tsStr string
		)
		if err := rows.Scan(&s.ID, &s.Amount, &tsStr, &s.Source); err != nil {
			return nil, fmt.Errorf("failed to scan balance snapshot: %w", err)
		}
		if t, ok := parseTimeString(tsStr); ok {
			s.Timestamp = t
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// UsageHistory returns usage records within the past N hours, oldest first.
func (db *DB) UsageHistory(hours int) ([]models.UsageRecord, error) {
	rows, err := db.QueryContext(context.Background(),
		`SELECT id, start_balance, end_balance, usage_amount, duration_minutes, timestamp
		 FROM usage_records
		 WHERE timestamp >= datetime('now', ?)
		 ORDER BY timestamp ASC, rowid ASC`,
		fmt.Sprintf("-%d hours", hours))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage history: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var (
			r     models.UsageRecord
			tsStr string
		)
		if err := rows.Scan(&r.ID, &r.StartBalance, &r.EndBalance, &r.UsageAmount, &r.DurationMinutes, &tsStr); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		if t, ok := parseTimeString(tsStr); ok {
			r.Timestamp = t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Prune deletes snapshots and usage records older than the retention
// window. Returns the total number of rows removed.
func (db *DB) Prune(retentionDays int) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	cutoff := fmt.Sprintf("-%d days", retentionDays)
	var total int64

	for _, table := range []string{"balance_snapshots", "usage_records"} {
		result, err := db.ExecContext(context.Background(),
			fmt.Sprintf("DELETE FROM %s WHERE timestamp < datetime('now', ?)", table),
			cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			total += n
		}
	}

	return total, nil
}

// StoreStats summarizes the contents of the store.
type StoreStats struct {
	SnapshotCount int
	UsageCount    int
	OldestSample  time.Time
}

// Stats returns row counts and the age of the oldest snapshot.
func (db *DB) Stats() (*StoreStats, error) {
	stats := &StoreStats{}

	row := db.QueryRowContext(context.Background(),
		`SELECT COUNT(*), COALESCE(MIN(timestamp), '') FROM balance_snapshots`)
	var oldest string
	if err := row.Scan(&stats.SnapshotCount, &oldest); err != nil {
		return nil, fmt.Errorf("failed to query store stats: %w", err)
	}
	if t, ok := parseTimeString(oldest); ok {
		stats.OldestSample = t
	}

	row = db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM usage_records`)
	if err := row.Scan(&stats.UsageCount); err != nil {
		return nil, fmt.Errorf("failed to query usage count: %w", err)
	}

	return stats, nil
}

func scanSnapshot(row *sql.Row) (*models.BalanceSnapshot, error) {
	var (
		s     models.BalanceSnapshot
		tsStr string
	)
	if err := row.Scan(&s.ID, &s.Amount, &tsStr, &s.Source); err != nil {
		return nil, err
	}
	if t, ok := parseTimeString(tsStr); ok {
		s.Timestamp = t
	}
	return &s, nil
}
