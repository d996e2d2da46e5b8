package domain

import (
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Classify computes the temporal state of an event from its wall-clock
// scheduling fields, evaluated at now:
//
//	upcoming   while now < start
//	ongoing    while start <= now < end
//	completed  once now >= end
//
// The end instant is endDate+endTime; endDate defaults to date, and an empty
// endTime means the event runs to the end of its end date. It never returns
// StatusCancelled; cancellation is a terminal, externally-set status that
// callers must special-case before classifying.
//
// An empty timezone falls back to the process-local zone. That fallback makes
// the computed state depend on where the process runs; it is preserved here
// for compatibility with stored events that carry no zone.
func Classify(date, endDate, startTime, endTime, timezone string, now time.Time) (EventStatus, error) {
	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return "", fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
		loc = l
	}

	if startTime == "" {
		startTime = "00:00"
	}
	start, err := time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+startTime, loc)
	if err != nil {
		return "", fmt.Errorf("invalid event start %q %q: %w", date, startTime, err)
	}

	if endDate == "" {
		endDate = date
	}
	var end time.Time
	if endTime == "" {
		day, err := time.ParseInLocation(dateLayout, endDate, loc)
		if err != nil {
			return "", fmt.Errorf("invalid event end date %q: %w", endDate, err)
		}
		end = day.AddDate(0, 0, 1)
	} else {
		end, err = time.ParseInLocation(dateLayout+" "+timeLayout, endDate+" "+endTime, loc)
		if err != nil {
			return "", fmt.Errorf("invalid event end %q %q: %w", endDate, endTime, err)
		}
	}
	if end.Before(start) {
		end = start
	}

	switch {
	case now.Before(start):
		return StatusUpcoming, nil
	case now.Before(end):
		return StatusOngoing, nil
	default:
		return StatusCompleted, nil
	}
}

// StartAt resolves the event's start instant the same way Classify does.
// The repository stores it denormalized so reminder scans stay a plain
// indexed range query.
func (e *Event) StartAt() (time.Time, error) {
	loc := time.Local
	if e.Timezone != "" {
		l, err := time.LoadLocation(e.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timezone %q: %w", e.Timezone, err)
		}
		loc = l
	}
	st := e.StartTime
	if st == "" {
		st = "00:00"
	}
	start, err := time.ParseInLocation(dateLayout+" "+timeLayout, e.Date+" "+st, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid event start %q %q: %w", e.Date, st, err)
	}
	return start, nil
}
