package ecourts

import (
	"ecourts-backend/lib/timezone"
	_ "embed"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/detail.html
var detailFixture string

func mustParse(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := Parse(markup)
	require.NoError(t, err)
	return doc
}

func TestOptions(t *testing.T) {
	doc := mustParse(t, `<select id="sess_state_code">
		<option value="">Select state</option>
		<option value="1"> State A </option>
		<option value="2"></option>
		<option value="3">State   B</option>
	</select>
	<select id="case_type"><option value="0">Select case type</option></select>`)

	require.Equal(t, []string{"State A", "State B"}, Options(doc, "#sess_state_code"))
	require.Empty(t, Options(doc, "#case_type"))
	require.Empty(t, Options(doc, "#missing"))
}

func TestParseCaseRecord(t *testing.T) {
	now := time.Date(2024, time.January, 11, 18, 30, 0, 0, timezone.Location)

	raw := mustParse(t, detailFixture)
	cleaned, err := StripNoise(detailFixture)
	require.NoError(t, err)

	record, err := ParseCaseRecord(raw, cleaned, now)
	require.NoError(t, err)

	hearing := time.Date(2024, time.January, 12, 0, 0, 0, 0, timezone.Location)
	expected := CaseRecord{
		CourtName: "Principal District and Sessions Court, Pune",
		CaseInfo: Fields{
			{Name: "Case Type", Value: "Civil Suit"},
			{Name: "Filing Number", Value: "1234/2023"},
			{Name: "Registration Number", Value: "567/2023"},
			{Name: "CNR Number", Value: "MHPU010012342023"},
		},
		CaseStatus: Fields{
			{Name: "First Hearing Date", Value: "02nd March 2023"},
			{Name: "Next Hearing Date", Value: "12-01-2024"},
			{Name: "Case Stage", Value: "Evidence"},
			{Name: "Court Number and Judge", Value: "4-Civil Judge Senior Division"},
		},
		NextHearing: HearingDate{
			Raw:        "12-01-2024",
			Date:       &hearing,
			Parsed:     true,
			IsTomorrow: true,
		},
		Petitioners: []string{"1) Ramesh Kumar Advocate- S. Patil"},
		Respondents: []string{"1) State of Maharashtra", "2) Pune Municipal Corporation"},
		Acts: []Act{
			{Act: "Code of Civil Procedure", Section: "9"},
			{Act: "Specific Relief Act", Section: "34,38"},
		},
		Processes: []Process{
			{ID: "101", Title: "Summons", Date: "05-04-2023"},
		},
		Orders: []Order{
			{Number: "1", Date: "10-05-2023", Details: "Copy of order", PdfLink: "displayPdf('a1')"},
			{Number: "2", Date: "20-06-2023", Details: "Not uploaded"},
			{Number: "3", Date: "01-12-2023", Details: "Interim order", PdfLink: "displayPdf('a3')"},
		},
	}

	diff := cmp.Diff(expected, record)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestParseCaseRecordMissingMarkup(t *testing.T) {
	markup := `<table class="case_details_table"><tr><td>a</td><td>b</td></tr></table>`
	cleaned, err := StripNoise(markup)
	require.NoError(t, err)

	_, err = ParseCaseRecord(mustParse(t, markup), cleaned, time.Now())
	require.True(t, errors.Is(err, ErrMissingMarkup))
	require.Contains(t, err.Error(), "chHeading")
}

func TestStripNoise(t *testing.T) {
	cleaned, err := StripNoise(detailFixture)
	require.NoError(t, err)

	require.Zero(t, cleaned.Find("script").Length())
	require.Zero(t, cleaned.Find("style").Length())
	require.Zero(t, cleaned.Find(".orderheading").Length())
	require.Zero(t, cleaned.Find("table.order_table").Length())
	require.Equal(t, 1, cleaned.Find("table.case_status_table").Length())

	// the orders are still readable from the markup as rendered
	require.Len(t, Orders(mustParse(t, detailFixture)), 3)
}

func TestHearingDateText(t *testing.T) {
	text, ok := HearingDateText(mustParse(t, detailFixture))
	require.True(t, ok)
	require.Equal(t, "12-01-2024", text)

	_, ok = HearingDateText(mustParse(t, `<table class="case_status_table">
		<tr><td>Case Stage</td><td>Disposed</td></tr>
	</table>`))
	require.False(t, ok)

	_, ok = HearingDateText(mustParse(t, `<p>no table</p>`))
	require.False(t, ok)
}

func TestPdfReferences(t *testing.T) {
	trigger, ok := LatestPdfTrigger(mustParse(t, detailFixture))
	require.True(t, ok)
	require.Equal(t, "displayPdf('a3')", trigger)

	_, ok = LatestPdfTrigger(mustParse(t, `<p>no orders</p>`))
	require.False(t, ok)

	ref, ok := PdfObjectRef(mustParse(t, `<div id="modal_order_body">
		<object data="reports/order_a3.pdf#toolbar=0" type="application/pdf"></object>
	</div>`))
	require.True(t, ok)
	require.Equal(t, "reports/order_a3.pdf#toolbar=0", ref)

	_, ok = PdfObjectRef(mustParse(t, `<div id="modal_order_body"></div>`))
	require.False(t, ok)

	resolved, err := ResolveRef(DefaultBaseURL, "reports/order_a3.pdf")
	require.NoError(t, err)
	require.Equal(t, "https://services.ecourts.gov.in/ecourtindia_v6/reports/order_a3.pdf", resolved)

	resolved, err = ResolveRef(DefaultBaseURL, "https://cdn.example.com/x.pdf")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/x.pdf", resolved)
}

func TestSubmissionOutcome(t *testing.T) {
	cases := []struct {
		name     string
		markup   string
		expected Outcome
	}{
		{
			name:     "captcha still showing",
			markup:   `<img id="captcha_image" src="x.png"><div id="CScaseNumber"></div>`,
			expected: OutcomeCaptcha,
		},
		{
			name:     "case links listed",
			markup:   `<img id="captcha_image" src="x.png"><a class="someclass" onclick="viewHistory(1)">View</a>`,
			expected: OutcomeResult,
		},
		{
			name:     "detail showing",
			markup:   `<div id="CScaseNumber"><h2 id="chHeading">Court</h2></div>`,
			expected: OutcomeResult,
		},
		{
			name:     "nothing yet",
			markup:   `<div id="CScaseNumber"> </div>`,
			expected: OutcomePending,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SubmissionOutcome(mustParse(t, tc.markup)))
		})
	}
}

func TestCaseLinkScripts(t *testing.T) {
	doc := mustParse(t, `
		<a class="someclass" onclick="viewHistory(1)">A</a>
		<a class="someclass">no handler</a>
		<a class="someclass" onclick=" viewHistory(2) ">B</a>`)
	require.Equal(t, []string{"viewHistory(1)", "viewHistory(2)"}, CaseLinkScripts(doc))
}

func TestFieldsMarshalKeepsOrder(t *testing.T) {
	fields := Fields{
		{Name: "Zeta", Value: "1"},
		{Name: "Alpha", Value: `"quoted"`},
	}
	encoded, err := json.Marshal(fields)
	require.NoError(t, err)
	require.Equal(t, `{"Zeta":"1","Alpha":"\"quoted\""}`, string(encoded))

	value, ok := fields.Get("Alpha")
	require.True(t, ok)
	require.Equal(t, `"quoted"`, value)
}
