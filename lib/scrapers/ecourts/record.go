package ecourts

import (
	"ecourts-backend/lib/htmlutil"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type Act struct {
	Act     string `json:"act"`
	Section string `json:"section"`
}

type Process struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

type Order struct {
	Number  string `json:"order_number"`
	Date    string `json:"order_date"`
	Details string `json:"order_details"`
	// PdfLink is the onclick handler that opens the order, empty when the
	// order has no document.
	PdfLink string `json:"pdf_link,omitempty"`
}

// CaseRecord is the structured form of the portal's case detail view.
type CaseRecord struct {
	CourtName   string      `json:"court_name"`
	CaseInfo    Fields      `json:"case_info"`
	CaseStatus  Fields      `json:"case_status"`
	NextHearing HearingDate `json:"next_hearing"`
	Petitioners []string    `json:"petitioner_list"`
	Respondents []string    `json:"respondent_list"`
	Acts        []Act       `json:"acts_list"`
	Processes   []Process   `json:"processes"`
	Orders      []Order     `json:"orders"`
}

// Orders reads the orders table. It has to be given the detail markup as
// rendered, StripNoise removes the table.
func Orders(doc *goquery.Document) []Order {
	out := []Order{}
	eachDataRow(doc, selOrders, 3, func(cells *goquery.Selection) {
		details := cells.Eq(2)
		order := Order{
			Number:  htmlutil.Text(cells.Eq(0)),
			Date:    htmlutil.Text(cells.Eq(1)),
			Details: htmlutil.Text(details),
		}
		link := details.Find("a").First()
		if link.Length() > 0 {
			order.Details = htmlutil.Text(link)
			order.PdfLink = link.AttrOr("onclick", "")
		}
		out = append(out, order)
	})
	return out
}

// ParseCaseRecord assembles a CaseRecord out of the detail markup, raw
// is the markup as rendered and cleaned the same markup after StripNoise.
//
// The court heading, case details and case status are always present on a
// real detail view, their absence fails with ErrMissingMarkup. The other
// tables only exist for some cases and come back empty.
func ParseCaseRecord(raw, cleaned *goquery.Document, now time.Time) (CaseRecord, error) {
	for _, required := range []string{selCourtHeading, selCaseDetails, selCaseStatus} {
		if cleaned.Find(required).Length() == 0 {
			return CaseRecord{}, fmt.Errorf("%w: %s", ErrMissingMarkup, required)
		}
	}

	record := CaseRecord{
		CourtName:   htmlutil.Text(cleaned.Find(selCourtHeading).First()),
		CaseInfo:    TableMapping(cleaned, selCaseDetails, "td, th", 2),
		CaseStatus:  TableMapping(cleaned, selCaseStatus, "td", 2),
		Petitioners: CellTexts(cleaned, selPetitioners),
		Respondents: CellTexts(cleaned, selRespondents),
		Acts:        []Act{},
		Processes:   []Process{},
		Orders:      Orders(raw),
	}

	for _, row := range ListTable(cleaned, selActs, "act", "section") {
		record.Acts = append(record.Acts, Act{Act: row[0].Value, Section: row[1].Value})
	}
	for _, row := range ListTable(cleaned, selProcesses, "id", "title", "date") {
		record.Processes = append(record.Processes, Process{
			ID:    row[0].Value,
			Title: row[1].Value,
			Date:  row[2].Value,
		})
	}

	hearing, _ := HearingDateText(cleaned)
	record.NextHearing = ParseHearingDate(hearing, now)

	return record, nil
}
