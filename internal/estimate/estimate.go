// Package estimate computes how close a maintenance schedule is to being
// due. Everything here is a pure function of the inputs; persistence and
// alerting live elsewhere.
package estimate

import "math"

// trailingWindowDays is the length of the usage window the daily average
// is computed over.
const trailingWindowDays = 7

// Estimate is the computed due-state of one schedule.
type Estimate struct {
	// Remaining is the usage left until the service is due, in the
	// equipment's native unit. Negative means overdue.
	Remaining float64 `json:"remaining"`

	// UsageFraction is how far through the interval the equipment is.
	// Exceeds 1 when overdue.
	UsageFraction float64 `json:"usage_fraction"`

	// AvgDailyUsage is the trailing 7-day average daily usage. Zero when
	// no usage has been logged in the window.
	AvgDailyUsage float64 `json:"avg_daily_usage"`

	// EstimatedDaysToDue projects when the schedule comes due at the
	// current usage rate. +Inf when no projection is possible; check
	// HasDaysEstimate before using it.
	EstimatedDaysToDue float64 `json:"estimated_days_to_due"`
	HasDaysEstimate    bool    `json:"has_days_estimate"`
}

// Compute derives the due-state of a schedule from its interval, the usage
// baseline recorded at the last completed service, the equipment's current
// cumulative usage, and the summed usage over the trailing 7 days.
//
// A non-positive interval cannot express a meaningful cycle; it is treated
// as immediately due rather than rejected, so a misconfigured schedule
// surfaces as an overdue alert instead of silently never firing.
func Compute(intervalValue, lastCompletedAtUsage, currentUsage, sevenDaySum float64) Estimate {
	avgDaily := sevenDaySum / trailingWindowDays

	if intervalValue <= 0 {
		return Estimate{
			Remaining:          0,
			UsageFraction:      1,
			AvgDailyUsage:      avgDaily,
			EstimatedDaysToDue: math.Inf(1),
		}
	}

	remaining := lastCompletedAtUsage + intervalValue - currentUsage
	fraction := (intervalValue - remaining) / intervalValue

	est := Estimate{
		Remaining:          remaining,
		UsageFraction:      fraction,
		AvgDailyUsage:      avgDaily,
		EstimatedDaysToDue: math.Inf(1),
	}

	if avgDaily > 0 && remaining > 0 {
		est.EstimatedDaysToDue = remaining / avgDaily
		est.HasDaysEstimate = true
	}
	return est
}
