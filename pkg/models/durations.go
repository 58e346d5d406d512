package models

import (
	"strconv"

	"github.com/kokoro-ai/taskadmin/pkg/schedule"
	"github.com/pkg/errors"
)

// PhaseDurations carries the four phase lengths as decimal day-counts.
// Durations stay strings on the wire and in the database to avoid
// floating-point drift across systems; they are parsed to days only when a
// timeline is actually computed.
type PhaseDurations struct {
	Announcement string `json:"announcement_duration" db:"announcement_duration"`
	Execution    string `json:"execution_duration" db:"execution_duration"`
	Review       string `json:"review_duration" db:"review_duration"`
	Reward       string `json:"reward_duration" db:"reward_duration"`
}

// DefaultPhaseDurations are the durations applied when a template omits them.
func DefaultPhaseDurations() PhaseDurations {
	return PhaseDurations{
		Announcement: "0.25",
		Execution:    "3.0",
		Review:       "1.0",
		Reward:       "0.0",
	}
}

// Days parses the durations into day-counts. Callers are expected to have
// validated the fields first; a negative or malformed field is still rejected
// here as a last line of defense.
func (p PhaseDurations) Days() (schedule.Durations, error) {
	var d schedule.Durations
	fields := []struct {
		name  string
		raw   string
		value *float64
	}{
		{"announcement_duration", p.Announcement, &d.Announcement},
		{"execution_duration", p.Execution, &d.Execution},
		{"review_duration", p.Review, &d.Review},
		{"reward_duration", p.Reward, &d.Reward},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return schedule.Durations{}, errors.Wrapf(err, "parse %s %q", f.name, f.raw)
		}
		if v < 0 {
			return schedule.Durations{}, errors.Errorf("%s must be non-negative, got %q", f.name, f.raw)
		}
		*f.value = v
	}
	return d, nil
}
