// Package streak tracks consecutive ordering days and decides when a
// student has earned the loyalty reward.
package streak

import "canteen-orders-api/models"

// DefaultThreshold is the number of consecutive days that earns a reward
const DefaultThreshold = 3

// Outcome says what a commit did to the streak
type Outcome string

const (
	OutcomeStarted   Outcome = "started"   // first ever commit
	OutcomeContinued Outcome = "continued" // commit on the day after the last one
	OutcomeReset     Outcome = "reset"     // gap of more than a day, or a future last day
	OutcomeUnchanged Outcome = "unchanged" // another commit on the same day
)

// Result of advancing a streak
type Result struct {
	Count           int     `json:"streak_count"`
	RewardTriggered bool    `json:"reward_triggered"`
	Outcome         Outcome `json:"outcome"`
}

// Tracker applies the streak rules
type Tracker struct {
	Threshold int
}

func NewTracker(threshold int) Tracker {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return Tracker{Threshold: threshold}
}

func (t Tracker) threshold() int {
	if t.Threshold < 1 {
		return DefaultThreshold
	}
	return t.Threshold
}

// Advance computes the record after a commit on today. prev is nil when the
// student has never committed. prev is not modified; the caller persists
// the returned record in the same transaction as the order.
func (t Tracker) Advance(studentID string, prev *models.StreakRecord, today models.Day) (models.StreakRecord, Result) {
	if prev == nil {
		next := models.StreakRecord{StudentID: studentID, LastOrderDay: today, StreakCount: 1}
		return t.reward(next, OutcomeStarted)
	}

	next := *prev
	switch prev.LastOrderDay {
	case today:
		// same-day re-commit: no increment and no second reward
		return next, Result{Count: next.StreakCount, Outcome: OutcomeUnchanged}
	case today.AddDays(-1):
		next.StreakCount++
		next.LastOrderDay = today
		return t.reward(next, OutcomeContinued)
	default:
		next.StreakCount = 1
		next.LastOrderDay = today
		return t.reward(next, OutcomeReset)
	}
}

func (t Tracker) reward(next models.StreakRecord, outcome Outcome) (models.StreakRecord, Result) {
	res := Result{Outcome: outcome}
	if next.StreakCount == t.threshold() {
		res.RewardTriggered = true
		next.StreakCount = 0
		next.RewardsEarned++
	}
	res.Count = next.StreakCount
	return next, res
}

// DaysUntilReward is how many more consecutive daily commits, starting
// with one on today, earn the next reward. A broken streak counts from
// scratch.
func (t Tracker) DaysUntilReward(rec *models.StreakRecord, today models.Day) int {
	if rec == nil {
		return t.threshold()
	}
	switch rec.LastOrderDay {
	case today, today.AddDays(-1):
		return t.threshold() - rec.StreakCount
	default:
		return t.threshold()
	}
}
