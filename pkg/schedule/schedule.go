// Package schedule computes the deterministic phase timeline of a task from
// its start instant and duration vector. Nothing here ticks: phase membership
// is derived on demand, so no background scheduler is needed.
package schedule

import (
	"sort"
	"time"
)

// Phase is a time-bounded stage of a task's life.
type Phase string

const (
	AnnouncementPhase Phase = "announcement"
	ExecutionPhase    Phase = "execution"
	ReviewPhase       Phase = "review"
	RewardPhase       Phase = "reward"
	CompletedPhase    Phase = "completed"
)

// Day is the fixed phase-arithmetic day length. Durations are elapsed-time,
// not calendar-day: no DST or leap-second adjustment ever applies.
const Day = 86400 * time.Second

// Durations is a phase-duration vector in days. A zero duration collapses
// the phase to zero width, which is a valid configuration (reward is
// frequently 0.0).
type Durations struct {
	Announcement float64
	Execution    float64
	Review       float64
	Reward       float64
}

// Boundaries are the four cumulative phase end instants.
type Boundaries struct {
	AnnouncementEnd time.Time `json:"announcement_end"`
	ExecutionEnd    time.Time `json:"execution_end"`
	ReviewEnd       time.Time `json:"review_end"`
	RewardEnd       time.Time `json:"reward_end"`
}

// PhaseBoundaries computes the four monotonically non-decreasing phase end
// instants for a task started at start.
func PhaseBoundaries(start time.Time, d Durations) Boundaries {
	announcementEnd := start.Add(days(d.Announcement))
	executionEnd := announcementEnd.Add(days(d.Execution))
	reviewEnd := executionEnd.Add(days(d.Review))
	rewardEnd := reviewEnd.Add(days(d.Reward))
	return Boundaries{
		AnnouncementEnd: announcementEnd,
		ExecutionEnd:    executionEnd,
		ReviewEnd:       reviewEnd,
		RewardEnd:       rewardEnd,
	}
}

// CurrentPhase returns the phase a task is in at the given instant, found by
// binary search over the boundaries. Any instant at or past RewardEnd is
// completed, so the function is total over [start, +inf).
func CurrentPhase(now time.Time, b Boundaries) Phase {
	ends := [...]time.Time{b.AnnouncementEnd, b.ExecutionEnd, b.ReviewEnd, b.RewardEnd}
	phases := [...]Phase{AnnouncementPhase, ExecutionPhase, ReviewPhase, RewardPhase}
	i := sort.Search(len(ends), func(i int) bool {
		return now.Before(ends[i])
	})
	if i == len(ends) {
		return CompletedPhase
	}
	return phases[i]
}

func days(d float64) time.Duration {
	return time.Duration(d * float64(Day))
}
