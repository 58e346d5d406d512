package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kokoro-ai/taskadmin/pkg/schedule"
)

func TestPhaseBoundaries(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("chains durations cumulatively", func(t *testing.T) {
		b := schedule.PhaseBoundaries(start, schedule.Durations{
			Announcement: 0.25,
			Execution:    3.0,
			Review:       1.0,
			Reward:       0.0,
		})
		assert.Equal(t, start.Add(6*time.Hour), b.AnnouncementEnd)
		assert.Equal(t, start.Add(6*time.Hour+3*24*time.Hour), b.ExecutionEnd)
		assert.Equal(t, start.Add(6*time.Hour+4*24*time.Hour), b.ReviewEnd)
		assert.Equal(t, b.ReviewEnd, b.RewardEnd)
	})

	t.Run("boundaries are monotonically non-decreasing", func(t *testing.T) {
		b := schedule.PhaseBoundaries(start, schedule.Durations{
			Announcement: 0.5,
			Execution:    0.0,
			Review:       2.0,
			Reward:       0.0,
		})
		assert.False(t, b.ExecutionEnd.Before(b.AnnouncementEnd))
		assert.False(t, b.ReviewEnd.Before(b.ExecutionEnd))
		assert.False(t, b.RewardEnd.Before(b.ReviewEnd))
	})

	t.Run("all-zero durations collapse to start", func(t *testing.T) {
		b := schedule.PhaseBoundaries(start, schedule.Durations{})
		assert.Equal(t, start, b.AnnouncementEnd)
		assert.Equal(t, start, b.RewardEnd)
	})

	t.Run("day length is fixed elapsed time", func(t *testing.T) {
		// 1.0 day is exactly 86400s even across a DST transition.
		loc, err := time.LoadLocation("Europe/Berlin")
		assert.NoError(t, err)
		dstStart := time.Date(2025, 3, 29, 12, 0, 0, 0, loc)
		b := schedule.PhaseBoundaries(dstStart, schedule.Durations{Announcement: 1.0})
		assert.Equal(t, 24*time.Hour, b.AnnouncementEnd.Sub(dstStart))
	})
}

func TestCurrentPhase(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	b := schedule.PhaseBoundaries(start, schedule.Durations{
		Announcement: 0.25,
		Execution:    3.0,
		Review:       1.0,
		Reward:       0.0,
	})

	day := 24 * time.Hour
	tests := []struct {
		name string
		at   time.Time
		want schedule.Phase
	}{
		{"at start", start, schedule.AnnouncementPhase},
		{"within announcement", start.Add(time.Duration(0.1 * float64(day))), schedule.AnnouncementPhase},
		{"at announcement end", start.Add(6 * time.Hour), schedule.ExecutionPhase},
		{"within execution", start.Add(2 * day), schedule.ExecutionPhase},
		{"within review", start.Add(3*day + 12*time.Hour), schedule.ReviewPhase},
		{"past every boundary", start.Add(time.Duration(4.3 * float64(day))), schedule.CompletedPhase},
		{"far in the future", start.Add(365 * day), schedule.CompletedPhase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, schedule.CurrentPhase(tt.at, b))
		})
	}

	t.Run("zero-width phase is never current", func(t *testing.T) {
		// Reward has zero width, so review rolls straight into completed.
		assert.Equal(t, schedule.CompletedPhase, schedule.CurrentPhase(b.ReviewEnd, b))
	})

	t.Run("boundary instant belongs to the next phase", func(t *testing.T) {
		assert.Equal(t, schedule.ExecutionPhase, schedule.CurrentPhase(b.AnnouncementEnd, b))
		assert.Equal(t, schedule.ReviewPhase, schedule.CurrentPhase(b.ExecutionEnd, b))
	})
}
