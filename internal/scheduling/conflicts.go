package scheduling

import "time"

// Overlaps reports whether half-open intervals [aStart, aEnd) and [bStart, bEnd)
// intersect. Touching endpoints do not conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// FilterFree keeps the candidates that overlap none of the local or external
// busy periods. Both sources are equally authoritative. Order is preserved and
// at most limit slots are returned when limit > 0.
func FilterFree(candidates []CandidateSlot, localBusy, externalBusy []BusyPeriod, limit int) []CandidateSlot {
	busy := make([]BusyPeriod, 0, len(localBusy)+len(externalBusy))
	busy = append(busy, localBusy...)
	busy = append(busy, externalBusy...)

	free := make([]CandidateSlot, 0, len(candidates))
	for _, c := range candidates {
		if conflicts(c.Start, c.End, busy) {
			continue
		}
		free = append(free, c)
		if limit > 0 && len(free) == limit {
			break
		}
	}
	return free
}

func conflicts(start, end time.Time, busy []BusyPeriod) bool {
	for _, p := range busy {
		if Overlaps(start, end, p.Start, p.End) {
			return true
		}
	}
	return false
}

// BusyFromAppointments converts scheduled appointments into local busy periods.
func BusyFromAppointments(appts []Appointment) []BusyPeriod {
	out := make([]BusyPeriod, 0, len(appts))
	for _, a := range appts {
		if a.Status != StatusScheduled {
			continue
		}
		out = append(out, BusyPeriod{Start: a.StartAt, End: a.EndAt(), Source: BusySourceLocal})
	}
	return out
}
