package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"equipment-pm-backend/internal/estimate"
)

func defaultThresholds() Thresholds {
	return Thresholds{
		ApproachingDays:  5,
		UsageFraction:    0.80,
		ApproachingUnits: 24,
		WarningUnits:     100,
	}
}

func TestClassify(t *testing.T) {
	th := defaultThresholds()

	testCases := []struct {
		name         string
		interval     float64
		baseline     float64
		current      float64
		sevenDaySum  float64
		wantSeverity Severity
		wantRule     string
	}{
		{
			name:         "healthy schedule",
			interval:     1000,
			current:      200,
			wantSeverity: SeverityOK,
		},
		{
			name:         "warning inside 100 units",
			interval:     1000,
			current:      910,
			wantSeverity: SeverityWarning,
			wantRule:     "warning_units",
		},
		{
			name:         "absolute fallback without any usage data",
			interval:     1000,
			current:      980, // remaining 20 <= 24, avg daily usage 0
			wantSeverity: SeverityApproaching,
			wantRule:     "remaining_units",
		},
		{
			name:         "usage fraction fallback",
			interval:     1000,
			current:      850, // 85% consumed, remaining 150
			wantSeverity: SeverityApproaching,
			wantRule:     "usage_fraction",
		},
		{
			name:         "predictive days to due",
			interval:     1000,
			current:      700,       // remaining 300
			sevenDaySum:  7 * 70,    // 70/day -> 4.3 days
			wantSeverity: SeverityApproaching,
			wantRule:     "projected_days",
		},
		{
			name:         "overdue",
			interval:     1000,
			current:      1005,
			wantSeverity: SeverityOverdue,
			wantRule:     "overdue",
		},
		{
			name:         "overdue wins over fraction and units",
			interval:     1000,
			current:      1500, // fraction 1.5, remaining -500
			sevenDaySum:  700,
			wantSeverity: SeverityOverdue,
			wantRule:     "overdue",
		},
		{
			name:         "exactly due is overdue",
			interval:     1000,
			current:      1000,
			wantSeverity: SeverityOverdue,
			wantRule:     "overdue",
		},
		{
			name:         "second cycle respects baseline",
			interval:     1000,
			baseline:     1000,
			current:      1100,
			wantSeverity: SeverityOK,
		},
		{
			name:         "non-positive interval is immediately overdue",
			interval:     0,
			current:      10,
			wantSeverity: SeverityOverdue,
			wantRule:     "overdue",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			est := estimate.Compute(tc.interval, tc.baseline, tc.current, tc.sevenDaySum)
			d := Classify(est, th)
			assert.Equal(t, tc.wantSeverity, d.Severity)
			assert.Equal(t, tc.wantRule, d.Rule)
		})
	}
}

// The rule list is order-sensitive; make sure nobody reorders it.
func TestRuleOrder(t *testing.T) {
	wantOrder := []string{"overdue", "projected_days", "usage_fraction", "remaining_units", "warning_units"}
	var got []string
	for _, r := range rules {
		got = append(got, r.Name)
	}
	assert.Equal(t, wantOrder, got)
}
