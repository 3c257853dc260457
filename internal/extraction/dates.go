package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

var frenchWeekdays = map[string]time.Weekday{
	"lundi":    time.Monday,
	"mardi":    time.Tuesday,
	"mercredi": time.Wednesday,
	"jeudi":    time.Thursday,
	"vendredi": time.Friday,
	"samedi":   time.Saturday,
	"dimanche": time.Sunday,
}

const weekdayAlternation = `lundi|mardi|mercredi|jeudi|vendredi|samedi|dimanche`

var (
	dayAfterTomorrowRE = regexp.MustCompile(`apr[eè]s[- ]demain`)
	nextWeekdayRE      = regexp.MustCompile(`(` + weekdayAlternation + `) prochain`)
	bareWeekdayRE      = regexp.MustCompile(`(` + weekdayAlternation + `)`)
	numericDateRE      = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})\b`)
	timeRE             = regexp.MustCompile(`(?i)(\d{1,2})\s?h\s?(\d{0,2})`)
	clockTimeRE        = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
)

// NormalizeDate converts a French date expression into YYYY-MM-DD relative to today.
// It returns "" when no expression is recognised or the explicit date is invalid.
func NormalizeDate(text string, today time.Time) string {
	text = strings.ToLower(text)
	base := startOfDay(today)

	if dayAfterTomorrowRE.MatchString(text) {
		return base.AddDate(0, 0, 2).Format(isoDate)
	}
	if strings.Contains(text, "demain") {
		return base.AddDate(0, 0, 1).Format(isoDate)
	}
	if m := nextWeekdayRE.FindStringSubmatch(text); m != nil {
		return nextWeekday(base, frenchWeekdays[m[1]]).Format(isoDate)
	}
	if m := bareWeekdayRE.FindStringSubmatch(text); m != nil {
		return nextWeekday(base, frenchWeekdays[m[1]]).Format(isoDate)
	}
	if m := numericDateRE.FindStringSubmatch(text); m != nil {
		return explicitDate(m[1], m[2], m[3], base)
	}
	return ""
}

// nextWeekday returns the next occurrence of target strictly after base.
func nextWeekday(base time.Time, target time.Weekday) time.Time {
	offset := (int(target) - int(base.Weekday()) + 7) % 7
	if offset == 0 {
		offset = 7
	}
	return base.AddDate(0, 0, offset)
}

// explicitDate parses DD/MM/YYYY literally. Impossible dates and dates that are
// not strictly after base yield "".
func explicitDate(dayStr, monthStr, yearStr string, base time.Time) string {
	if len(yearStr) == 2 {
		yearStr = "20" + yearStr
	}
	day, errD := strconv.Atoi(dayStr)
	month, errM := strconv.Atoi(monthStr)
	year, errY := strconv.Atoi(yearStr)
	if errD != nil || errM != nil || errY != nil {
		return ""
	}
	if month < 1 || month > 12 || day < 1 {
		return ""
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, base.Location())
	// time.Date normalises overflow (31/02 -> 02/03), which means the input was not a real date.
	if t.Day() != day || int(t.Month()) != month {
		return ""
	}
	if !t.After(base) {
		return ""
	}
	return t.Format(isoDate)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NormalizeTime extracts the first valid time of day and renders it as HhMM ("10h00").
func NormalizeTime(text string) string {
	for _, m := range timeRE.FindAllStringSubmatch(text, -1) {
		if formatted, ok := formatClock(m[1], m[2]); ok {
			return formatted
		}
	}
	for _, m := range clockTimeRE.FindAllStringSubmatch(text, -1) {
		if formatted, ok := formatClock(m[1], m[2]); ok {
			return formatted
		}
	}
	return ""
}

func formatClock(hourStr, minuteStr string) (string, bool) {
	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour > 23 {
		return "", false
	}
	if minuteStr == "" {
		minuteStr = "00"
	}
	if len(minuteStr) == 1 {
		return "", false
	}
	minute, err := strconv.Atoi(minuteStr)
	if err != nil || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%dh%02d", hour, minute), true
}

// ParseTime reads a normalised HhMM value back into hour and minute.
func ParseTime(value string) (hour, minute int, ok bool) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(value)), "h", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	if parts[1] == "" {
		return hour, 0, true
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// AppointmentWindow combines an ISO date and an HhMM time into absolute start/end instants.
func AppointmentWindow(date, clock string, loc *time.Location, duration time.Duration) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(isoDate, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("extraction: invalid date %q: %w", date, err)
	}
	hour, minute, ok := ParseTime(clock)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("extraction: invalid time %q", clock)
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	return start, start.Add(duration), nil
}
