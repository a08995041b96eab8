package tasks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Relative scheduled-time expressions are resolved to absolute
// timestamps before they reach the store. Phrases that are statements
// about time rather than dates ("the time is wrong") are rejected so a
// complaint never silently reschedules a task.

var nonDatePhrases = []string{
	"time is", "date is", "time was", "date was",
	"wrong time", "wrong date", "incorrect time", "incorrect date",
	"time wrong", "date wrong", "time incorrect", "date incorrect",
}

var (
	clockRe    = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	meridiemRe = regexp.MustCompile(`(\d{1,2})\s*(am|pm)`)
	inDaysRe   = regexp.MustCompile(`in\s+(\d+)\s+days?`)
)

// ParseScheduledTime resolves a natural-language scheduled time
// relative to now. Bare day words resolve to midnight of that day.
func ParseScheduledTime(input string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: scheduled time must not be empty", ErrInvalidField)
	}
	lower := strings.ToLower(trimmed)

	for _, phrase := range nonDatePhrases {
		if strings.Contains(lower, phrase) {
			return time.Time{}, fmt.Errorf("%w: %q is a statement about time, not a date", ErrInvalidField, input)
		}
	}

	hour, minute, hasClock := timeOfDay(lower)

	onDay := func(day time.Time) time.Time {
		if hasClock {
			return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
		}
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	}

	switch {
	case lower == "today" || strings.HasPrefix(lower, "today "):
		return onDay(now), nil
	case lower == "tomorrow" || strings.HasPrefix(lower, "tomorrow "):
		return onDay(now.AddDate(0, 0, 1)), nil
	case lower == "yesterday" || strings.HasPrefix(lower, "yesterday "):
		return onDay(now.AddDate(0, 0, -1)), nil
	case strings.HasPrefix(lower, "next week"):
		// Next Monday; a full week out when today already is Monday.
		days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return onDay(now.AddDate(0, 0, days)), nil
	}

	if m := inDaysRe.FindStringSubmatch(lower); m != nil {
		days, err := strconv.Atoi(m[1])
		if err == nil {
			return onDay(now.AddDate(0, 0, days)), nil
		}
	}

	parsed, err := dateparse.ParseIn(trimmed, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: could not parse scheduled time %q", ErrInvalidField, input)
	}
	return parsed, nil
}

// timeOfDay extracts an explicit clock time ("3pm", "17:30") from the
// phrase, if present.
func timeOfDay(lower string) (hour, minute int, ok bool) {
	if m := clockRe.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		if h < 24 && min < 60 {
			return h, min, true
		}
	}
	if m := meridiemRe.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h >= 1 && h <= 12 {
			if m[2] == "pm" && h != 12 {
				h += 12
			}
			if m[2] == "am" && h == 12 {
				h = 0
			}
			return h, 0, true
		}
	}
	return 0, 0, false
}
