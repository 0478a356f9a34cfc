package ecourts

import (
	"ecourts-backend/lib/timezone"
	"strconv"
	"strings"
	"time"
)

// HearingDate is the next hearing date as the portal printed it plus its
// normalized form when it could be parsed. Date is nil otherwise.
type HearingDate struct {
	Raw        string     `json:"raw"`
	Date       *time.Time `json:"date,omitempty"`
	Parsed     bool       `json:"parsed"`
	IsTomorrow bool       `json:"is_tomorrow"`
}

// tried in order, the first that parses wins.
var hearingLayouts = []string{
	"2-1-2006",
	"2th January 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2th Jan 2006",
}

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "jun": time.June, "jul": time.July,
	"aug": time.August, "sep": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

var ordinalReplacer = strings.NewReplacer("th", "", "st", "", "nd", "", "rd", "")

// parseHearingFallback handles "<day><ordinal> <month> <year> ..." forms the
// layouts do not cover (ex. "21st August 2024").
func parseHearingFallback(raw string) (time.Time, bool) {
	parts := strings.Fields(raw)
	if len(parts) < 3 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(ordinalReplacer.Replace(parts[0]))
	if err != nil {
		return time.Time{}, false
	}
	month, ok := monthNames[strings.ToLower(parts[1])]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, false
	}

	date := time.Date(year, month, day, 0, 0, 0, 0, timezone.Location)
	// time.Date normalizes overflow (Feb 30 -> Mar 1), that is not a date
	// that was printed.
	if date.Day() != day || date.Month() != month {
		return time.Time{}, false
	}
	return date, true
}

// ParseHearingDate normalizes raw and decides whether it falls on the day
// after now. An unparseable string is kept as is with IsTomorrow false.
func ParseHearingDate(raw string, now time.Time) HearingDate {
	raw = strings.TrimSpace(raw)
	out := HearingDate{Raw: raw}
	if raw == "" {
		return out
	}

	var date time.Time
	parsed := false
	for _, layout := range hearingLayouts {
		t, err := time.ParseInLocation(layout, raw, timezone.Location)
		if err == nil {
			date = t
			parsed = true
			break
		}
	}
	if !parsed {
		date, parsed = parseHearingFallback(raw)
	}
	if !parsed {
		return out
	}

	out.Date = &date
	out.Parsed = true
	tomorrow := timezone.StartOfDay(now).AddDate(0, 0, 1)
	out.IsTomorrow = timezone.StartOfDay(date).Equal(tomorrow)
	return out
}
