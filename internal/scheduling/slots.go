package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// GenerateSlots expands weekly availability rules into candidate start times
// within [rangeStart, rangeEnd). Rule times are wall-clock values in loc.
// Each rule is walked independently in steps of duration+buffer; a candidate is
// kept only if it ends by the rule's end and does not start before now.
// Candidates are returned in chronological order with exact duplicates removed
// (two rules of the same day may produce the same start).
func GenerateSlots(
	rules []AvailabilityRule,
	loc *time.Location,
	rangeStart, rangeEnd time.Time,
	durationMinutes, bufferMinutes int,
	now time.Time,
) []CandidateSlot {
	if durationMinutes <= 0 || bufferMinutes < 0 || len(rules) == 0 || !rangeStart.Before(rangeEnd) {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	slotLen := time.Duration(durationMinutes) * time.Minute
	step := slotLen + time.Duration(bufferMinutes)*time.Minute

	local := rangeStart.In(loc)
	y, m, d := local.Date()

	var out []CandidateSlot
	for i := 0; ; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		if !day.Before(rangeEnd) {
			break
		}
		for _, r := range rules {
			if int(day.Weekday()) != r.DayOfWeek {
				continue
			}
			startTOD, endTOD, err := ruleBounds(r)
			if err != nil {
				continue
			}
			dy, dm, dd := day.Date()
			winStart := time.Date(dy, dm, dd, startTOD.Hour(), startTOD.Minute(), 0, 0, loc)
			winEnd := time.Date(dy, dm, dd, endTOD.Hour(), endTOD.Minute(), 0, 0, loc)

			for s := winStart; !s.Add(slotLen).After(winEnd); s = s.Add(step) {
				if s.Before(now) || s.Before(rangeStart) || !s.Before(rangeEnd) {
					continue
				}
				out = append(out, CandidateSlot{Start: s, End: s.Add(slotLen)})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	deduped := out[:0]
	for i, s := range out {
		if i > 0 && s.Start.Equal(deduped[len(deduped)-1].Start) {
			continue
		}
		deduped = append(deduped, s)
	}
	return deduped
}

// ValidateRule checks day-of-week range and that start is strictly before end.
func ValidateRule(r AvailabilityRule) error {
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return &ValidationError{Field: "day_of_week", Reason: "must be between 0 (Sunday) and 6 (Saturday)"}
	}
	if _, _, err := ruleBounds(r); err != nil {
		return err
	}
	return nil
}

func ruleBounds(r AvailabilityRule) (time.Time, time.Time, error) {
	start, err := parseHHMM(r.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "start_time", Reason: err.Error()}
	}
	end, err := parseHHMM(r.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "end_time", Reason: err.Error()}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	return start, end, nil
}

func parseHHMM(s string) (time.Time, error) {
	// "09:00:00" from a TIME column -> "09:00"
	if len(s) == 8 && strings.HasSuffix(s, ":00") {
		s = s[:5]
	}
	if len(s) != 5 {
		return time.Time{}, fmt.Errorf("invalid time string: %q", s)
	}
	return time.Parse("15:04", s)
}
