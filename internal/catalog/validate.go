package catalog

import (
	"fmt"
	"math"
	"strings"
)

const (
	fractionTolerance = 0.001
	maxMusicFraction  = 0.60
	minTalkFraction   = 0.40

	// Every show runs a fixed-length block; the handover clip that bridges
	// two blocks has a fixed length too.
	requiredDurationHours   = 3
	requiredHandoverSeconds = 300
)

// Validate checks a show definition against the station's hard bounds.
// All violations are collected so a broken config is reported in one pass,
// not drip-fed one fatal error at a time.
func (s *ShowConfig) Validate() error {
	var problems []string

	if s.ID == "" {
		problems = append(problems, "id must not be empty")
	}
	if s.Name == "" {
		problems = append(problems, "name must not be empty")
	}

	sum := s.MusicFraction + s.TalkFraction
	if math.Abs(sum-1.0) > fractionTolerance {
		problems = append(problems,
			fmt.Sprintf("music_fraction + talk_fraction must equal 1.0, got %.3f", sum))
	}
	if s.MusicFraction > maxMusicFraction {
		problems = append(problems,
			fmt.Sprintf("music_fraction must be <= %.2f, got %.3f", maxMusicFraction, s.MusicFraction))
	}
	if s.TalkFraction < minTalkFraction {
		problems = append(problems,
			fmt.Sprintf("talk_fraction must be >= %.2f, got %.3f", minTalkFraction, s.TalkFraction))
	}

	if s.Schedule.DurationHours != requiredDurationHours {
		problems = append(problems,
			fmt.Sprintf("schedule duration must be %d hours, got %d", requiredDurationHours, s.Schedule.DurationHours))
	}
	if len(s.Schedule.Days) == 0 {
		problems = append(problems, "schedule must include at least one weekday")
	}
	if s.Schedule.StartMinute() < 0 {
		problems = append(problems,
			fmt.Sprintf("schedule start must be HH:MM, got %q", s.Schedule.Start))
	}

	if s.HandoverSeconds != requiredHandoverSeconds {
		problems = append(problems,
			fmt.Sprintf("handover duration must be %d seconds, got %d", requiredHandoverSeconds, s.HandoverSeconds))
	}

	if len(s.Presenters) != 2 {
		problems = append(problems,
			fmt.Sprintf("show requires a presenter duo, got %d presenters", len(s.Presenters)))
	}
	if s.DuoProbability < 0 || s.DuoProbability > 1 {
		problems = append(problems,
			fmt.Sprintf("duo_probability must be in [0,1], got %v", s.DuoProbability))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%d violation(s):\n  - %s", len(problems), strings.Join(problems, "\n  - "))
	}
	return nil
}
