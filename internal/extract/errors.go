// Package extract turns a portal credential into a credit balance
// reading, falling through a cascade of strategies: the structured
// portal API first, then a rendered-browser scrape, then plain HTTP
// heuristics.
package extract

import (
	"errors"
	"fmt"
)

// ErrAuth means the portal rejected the credential. Retrying cannot
// help; the caller should prompt for a fresh token.
var ErrAuth = errors.New("portal credential rejected")

// ExtractError reports that every strategy failed across the full
// retry budget.
type ExtractError struct {
	Attempts int
	LastErr  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("balance extraction failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExtractError) Unwrap() error {
	return e.LastErr
}
