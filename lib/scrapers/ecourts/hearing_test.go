package ecourts

import (
	"ecourts-backend/lib/timezone"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseHearingDate(t *testing.T) {
	now := time.Date(2024, time.January, 11, 9, 0, 0, 0, timezone.Location)
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, timezone.Location)
	}

	cases := []struct {
		raw        string
		parsed     bool
		date       time.Time
		isTomorrow bool
	}{
		{raw: "12-01-2024", parsed: true, date: date(2024, time.January, 12), isTomorrow: true},
		{raw: "5th January 2024", parsed: true, date: date(2024, time.January, 5)},
		{raw: "5 Jan 2024", parsed: true, date: date(2024, time.January, 5)},
		{raw: "5 January 2024", parsed: true, date: date(2024, time.January, 5)},
		{raw: "12th Jan 2024", parsed: true, date: date(2024, time.January, 12), isTomorrow: true},
		{raw: "21st August 2024", parsed: true, date: date(2024, time.August, 21)},
		{raw: "2nd Feb 2024", parsed: true, date: date(2024, time.February, 2)},
		{raw: "11-01-2024", parsed: true, date: date(2024, time.January, 11)},
		{raw: "30th February 2024"},
		{raw: "Not listed"},
		{raw: ""},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got := ParseHearingDate(tc.raw, now)
			require.Equal(t, tc.raw, got.Raw)
			require.Equal(t, tc.parsed, got.Parsed)
			require.Equal(t, tc.isTomorrow, got.IsTomorrow)
			if !tc.parsed {
				require.Nil(t, got.Date)
				return
			}
			require.NotNil(t, got.Date)
			require.True(t, tc.date.Equal(*got.Date), "expected %s, got %s", tc.date, got.Date)
		})
	}
}

func TestParseHearingDateSameDates(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, timezone.Location)
	a := ParseHearingDate("5th January 2024", now)
	b := ParseHearingDate("5 Jan 2024", now)
	require.True(t, a.Date.Equal(*b.Date))
}

func TestUnparsedHearingOmitsDate(t *testing.T) {
	now := time.Date(2024, time.January, 11, 9, 0, 0, 0, timezone.Location)

	encoded, err := json.Marshal(ParseHearingDate("Not listed", now))
	require.NoError(t, err)
	require.JSONEq(t, `{"raw":"Not listed","parsed":false,"is_tomorrow":false}`, string(encoded))

	encoded, err = json.Marshal(ParseHearingDate("12-01-2024", now))
	require.NoError(t, err)
	require.JSONEq(t, `{"raw":"12-01-2024","date":"2024-01-12T00:00:00+05:30","parsed":true,"is_tomorrow":true}`, string(encoded))
}

func TestIsTomorrowUsesIndianDate(t *testing.T) {
	// 20:00 UTC on the 10th is already the 11th in India
	now := time.Date(2024, time.January, 10, 20, 0, 0, 0, time.UTC)
	require.True(t, ParseHearingDate("12-01-2024", now).IsTomorrow)
	require.False(t, ParseHearingDate("11-01-2024", now).IsTomorrow)
}
