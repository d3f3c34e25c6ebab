package alert

import "equipment-pm-backend/internal/estimate"

// Severity classifies how urgent a schedule's due-state is.
type Severity string

const (
	SeverityOK          Severity = "ok"
	SeverityWarning     Severity = "warning"
	SeverityApproaching Severity = "approaching"
	SeverityOverdue     Severity = "overdue"
)

// Thresholds are the tunable cutoffs the severity rules compare against.
type Thresholds struct {
	// ApproachingDays: projected days-to-due at or below this is approaching.
	ApproachingDays float64
	// UsageFraction: interval consumption at or above this is approaching.
	UsageFraction float64
	// ApproachingUnits: absolute remaining usage fallback for approaching.
	ApproachingUnits float64
	// WarningUnits: absolute remaining usage cutoff for the warning tier.
	WarningUnits float64
}

// Rule is one (predicate, severity) pair. Rules are evaluated strictly in
// order; the first match wins, which is what makes the tie-break between
// overlapping conditions auditable.
type Rule struct {
	Name     string
	Severity Severity
	Match    func(est estimate.Estimate, th Thresholds) bool
}

// rules is the ordered decision list. Order is load-bearing: a schedule that
// is simultaneously overdue and past the usage fraction must classify as
// overdue.
var rules = []Rule{
	{
		Name:     "overdue",
		Severity: SeverityOverdue,
		Match: func(est estimate.Estimate, th Thresholds) bool {
			return est.Remaining <= 0
		},
	},
	{
		Name:     "projected_days",
		Severity: SeverityApproaching,
		Match: func(est estimate.Estimate, th Thresholds) bool {
			return est.HasDaysEstimate && est.EstimatedDaysToDue <= th.ApproachingDays
		},
	},
	{
		Name:     "usage_fraction",
		Severity: SeverityApproaching,
		Match: func(est estimate.Estimate, th Thresholds) bool {
			return est.UsageFraction >= th.UsageFraction
		},
	},
	{
		Name:     "remaining_units",
		Severity: SeverityApproaching,
		Match: func(est estimate.Estimate, th Thresholds) bool {
			return est.Remaining <= th.ApproachingUnits
		},
	},
	{
		Name:     "warning_units",
		Severity: SeverityWarning,
		Match: func(est estimate.Estimate, th Thresholds) bool {
			return est.Remaining <= th.WarningUnits
		},
	},
}

// Decision is the outcome of classifying one schedule.
type Decision struct {
	Severity Severity `json:"severity"`
	Rule     string   `json:"rule,omitempty"`
}

// Classify runs the ordered rule list over an estimate and returns the
// first matching severity, or ok when nothing matches.
func Classify(est estimate.Estimate, th Thresholds) Decision {
	for _, r := range rules {
		if r.Match(est, th) {
			return Decision{Severity: r.Severity, Rule: r.Name}
		}
	}
	return Decision{Severity: SeverityOK}
}
