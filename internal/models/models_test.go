package models

import "testing"

func TestTrendString(t *testing.T) {
	tests := []struct {
		trend Trend
		want  string
	}{
		{TrendIncreasing, "Increasing"},
		{TrendDecreasing, "Decreasing"},
		{TrendStable, "Stable"},
		{TrendInsufficient, "Insufficient Data"},
		{Trend("bogus"), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.trend.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAlertLevelString(t *testing.T) {
	tests := []struct {
		level AlertLevel
		want  string
	}{
		{AlertInfo, "Info"},
		{AlertWarning, "Warning"},
		{AlertCritical, "Critical"},
		{AlertLevel(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimeRangeCycle(t *testing.T) {
	r := TimeRange24Hours
	seen := map[TimeRange]bool{}
	for i := 0; i < 3; i++ {
		seen[r] = true
		r = r.Next()
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 distinct ranges, got %d", len(seen))
	}
	if r != TimeRange24Hours {
		t.Errorf("expected cycle back to 24 hours, got %v", r)
	}
}

func TestTimeRangeHours(t *testing.T) {
	tests := []struct {
		r    TimeRange
		want int
	}{
		{TimeRange24Hours, 24},
		{TimeRange7Days, 168},
		{TimeRange30Days, 720},
		{TimeRange(42), 24},
	}

	for _, tt := range tests {
		if got := tt.r.Hours(); got != tt.want {
			t.Errorf("%v.Hours() = %d, want %d", tt.r, got, tt.want)
		}
	}
}
