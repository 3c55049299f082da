package service

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tutor-service/internal/models"
)

const minutesPerDay = 24 * 60

var allowedDurations = []int{30, 60, 90, 120}

// parseClock converts "HH:MM" to minutes since midnight. "24:00" is accepted as end of day.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q", s)
	}

	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}

	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock %q", s)
	}

	return h*60 + m, nil
}

// parseWeekday accepts full English day names in any case.
func parseWeekday(s string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(strings.TrimSpace(s), d.String()) {
			return d, true
		}
	}
	return 0, false
}

type window struct {
	start, end int
}

// dayWindows returns the day's availability as sorted minute windows. Invalid entries are skipped;
// they cannot be stored because profile validation rejects them.
func dayWindows(avail []models.DayAvailability, day time.Weekday) []window {
	var out []window

	for _, a := range avail {
		wd, ok := parseWeekday(a.Day)
		if !ok || wd != day {
			continue
		}
		for _, s := range a.Slots {
			start, err := parseClock(s.Start)
			if err != nil {
				continue
			}
			end, err := parseClock(s.End)
			if err != nil || end <= start {
				continue
			}
			out = append(out, window{start: start, end: end})
		}
	}

	slices.SortFunc(out, func(a, b window) int { return cmp.Compare(a.start, b.start) })
	return out
}

// withinAvailability reports whether [start, end) fits inside one declared window of start's weekday in loc.
func withinAvailability(avail []models.DayAvailability, start, end time.Time, loc *time.Location) bool {
	s := start.In(loc)
	e := end.In(loc)

	if !e.After(s) {
		return false
	}

	startMin := s.Hour()*60 + s.Minute()
	endMin := e.Hour()*60 + e.Minute()

	sy, sm, sd := s.Date()
	ey, em, ed := e.Date()
	if sy != ey || sm != em || sd != ed {
		next := time.Date(sy, sm, sd+1, 0, 0, 0, 0, loc)
		if !e.Equal(next) {
			return false
		}
		endMin = minutesPerDay
	}

	for _, w := range dayWindows(avail, s.Weekday()) {
		if w.start <= startMin && endMin <= w.end {
			return true
		}
	}
	return false
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// computePrice is durationMinutes/60 * hourlyRate rounded to cents.
func computePrice(hourlyRate decimal.Decimal, durationMinutes int) decimal.Decimal {
	return hourlyRate.
		Mul(decimal.NewFromInt(int64(durationMinutes))).
		Div(decimal.NewFromInt(60)).
		Round(2)
}

func validDuration(minutes int) bool {
	return slices.Contains(allowedDurations, minutes)
}

// openSlots yields the declared windows of every day in [from, to] (dates in loc) minus the given
// scheduled bookings, ascending by start. Intervals that do not start after now are omitted.
// The sequence is computed lazily and can be ranged over any number of times.
func openSlots(
	tutorID string,
	avail []models.DayAvailability,
	booked []models.Booking,
	from, to time.Time,
	loc *time.Location,
	now time.Time,
) iter.Seq[models.Slot] {
	busy := slices.Clone(booked)
	slices.SortFunc(busy, func(a, b models.Booking) int { return a.StartTime.Compare(b.StartTime) })

	first := truncateToDate(from, loc)
	last := truncateToDate(to, loc)

	return func(yield func(models.Slot) bool) {
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			for _, w := range dayWindows(avail, d.Weekday()) {
				ws := time.Date(d.Year(), d.Month(), d.Day(), 0, w.start, 0, 0, loc)
				we := time.Date(d.Year(), d.Month(), d.Day(), 0, w.end, 0, 0, loc)

				if !subtractBusy(tutorID, ws, we, busy, now, yield) {
					return
				}
			}
		}
	}
}

func subtractBusy(tutorID string, ws, we time.Time, busy []models.Booking, now time.Time, yield func(models.Slot) bool) bool {
	emit := func(s, e time.Time) bool {
		if !s.Before(e) || !s.After(now) {
			return true
		}
		return yield(models.Slot{TutorProfileID: tutorID, Start: s, End: e})
	}

	cursor := ws
	for _, b := range busy {
		if !b.EndTime.After(cursor) {
			continue
		}
		if !b.StartTime.Before(we) {
			break
		}
		if b.StartTime.After(cursor) {
			if !emit(cursor, b.StartTime) {
				return false
			}
		}
		if b.EndTime.After(cursor) {
			cursor = b.EndTime
		}
	}

	if cursor.Before(we) {
		return emit(cursor, we)
	}
	return true
}

// truncateToDate returns midnight of t's calendar day in loc.
func truncateToDate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// validateAvailability checks day names, clock formats and that windows of one day do not overlap.
func validateAvailability(avail []models.DayAvailability) []string {
	var problems []string
	perDay := map[time.Weekday][]window{}

	for i, a := range avail {
		wd, ok := parseWeekday(a.Day)
		if !ok {
			problems = append(problems, fmt.Sprintf("availability[%d].day '%s' is not a weekday", i, a.Day))
			continue
		}
		for j, s := range a.Slots {
			start, err := parseClock(s.Start)
			if err != nil || start == minutesPerDay {
				problems = append(problems, fmt.Sprintf("availability[%d].slots[%d].start is invalid", i, j))
				continue
			}
			end, err := parseClock(s.End)
			if err != nil {
				problems = append(problems, fmt.Sprintf("availability[%d].slots[%d].end is invalid", i, j))
				continue
			}
			if end <= start {
				problems = append(problems, fmt.Sprintf("availability[%d].slots[%d] must end after it starts", i, j))
				continue
			}
			perDay[wd] = append(perDay[wd], window{start: start, end: end})
		}
	}

	for d := time.Sunday; d <= time.Saturday; d++ {
		ws := perDay[d]
		slices.SortFunc(ws, func(a, b window) int { return cmp.Compare(a.start, b.start) })
		for i := 1; i < len(ws); i++ {
			if ws[i].start < ws[i-1].end {
				problems = append(problems, fmt.Sprintf("availability on %s has overlapping slots", d))
				break
			}
		}
	}

	return problems
}
