package ecourts

import (
	"bytes"
	"ecourts-backend/lib/htmlutil"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrMissingMarkup means a piece of markup the detail view always carries
// was not there, usually because the portal changed its layout.
var ErrMissingMarkup = errors.New("ecourts: expected markup missing")

// Field is a single entry of an ordered mapping.
type Field struct {
	Name  string
	Value string
}

// Fields is an ordered mapping, it encodes to a JSON object whose keys keep
// the order they had in the page.
type Fields []Field

func (f Fields) Get(name string) (string, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Parse reads a snapshot of rendered markup.
func Parse(markup string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(markup))
}

// Options returns the visible labels of the options of the <select>
// matched by selector, trimmed, skipping empty labels and the placeholder
// option (the one with an empty or "0" value).
func Options(doc *goquery.Document, selector string) []string {
	out := []string{}
	doc.Find(selector).First().Find("option").Each(func(_ int, opt *goquery.Selection) {
		value, hasValue := opt.Attr("value")
		value = strings.TrimSpace(value)
		if hasValue && (value == "" || value == "0") {
			return
		}
		label := htmlutil.Text(opt)
		if label == "" {
			return
		}
		out = append(out, label)
	})
	return out
}

// TableMapping reads the table matched by selector into an ordered
// mapping, using the first cell of each row as the name and the second as
// the value. Rows with fewer than minCols cells are skipped, a repeated
// name keeps its first position but takes the last value.
func TableMapping(doc *goquery.Document, selector, cellSelector string, minCols int) Fields {
	out := Fields{}
	doc.Find(selector).First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := htmlutil.Cells(row, cellSelector)
		if len(cells) < minCols || len(cells) < 2 {
			return
		}
		for i := range out {
			if out[i].Name == cells[0] {
				out[i].Value = cells[1]
				return
			}
		}
		out = append(out, Field{Name: cells[0], Value: cells[1]})
	})
	return out
}

// ListTable reads the table matched by selector into one record per row,
// naming the cells after columns. The first row is a header and skipped,
// so are rows with fewer cells than columns.
func ListTable(doc *goquery.Document, selector string, columns ...string) []Fields {
	out := []Fields{}
	eachDataRow(doc, selector, len(columns), func(cells *goquery.Selection) {
		record := make(Fields, len(columns))
		for i, name := range columns {
			record[i] = Field{Name: name, Value: htmlutil.Text(cells.Eq(i))}
		}
		out = append(out, record)
	})
	return out
}

func eachDataRow(doc *goquery.Document, selector string, minCols int, fn func(cells *goquery.Selection)) {
	doc.Find(selector).First().Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < minCols {
			return
		}
		fn(cells)
	})
}

// CellTexts is the text of every <td> of the table matched by selector.
func CellTexts(doc *goquery.Document, selector string) []string {
	out := []string{}
	doc.Find(selector).First().Find("td").Each(func(_ int, td *goquery.Selection) {
		out = append(out, htmlutil.Text(td))
	})
	return out
}

// HearingDateText finds the row of the case status table whose first cell
// mentions the next hearing date and returns its second cell.
func HearingDateText(doc *goquery.Document) (string, bool) {
	var out string
	found := false
	doc.Find(selCaseStatus).First().Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := htmlutil.Cells(row, "td")
		if len(cells) == 0 || !strings.Contains(cells[0], nextHearingLabel) {
			return true
		}
		if len(cells) > 1 {
			out = cells[1]
		}
		found = out != ""
		return false
	})
	return out, found
}

// StripNoise parses the case detail markup without the parts that are not
// meant for display, which are scripts, styles, the order heading and the
// orders table.
func StripNoise(markup string) (*goquery.Document, error) {
	cleaned, err := Parse(markup)
	if err != nil {
		return nil, err
	}
	cleaned.Find("script, style, orderheading, .orderheading, " + selOrders).Remove()
	return cleaned, nil
}

// CaseLinkScripts returns the onclick handlers of the intermediate case
// links listed after a submission, in page order.
func CaseLinkScripts(doc *goquery.Document) []string {
	out := []string{}
	for _, anchor := range htmlutil.GetAnchors(doc.Find(SelCaseLinks)) {
		if anchor.Onclick != "" {
			out = append(out, anchor.Onclick)
		}
	}
	return out
}

// LatestPdfTrigger returns the onclick handler of the last order pdf
// control, which the portal lists oldest first.
func LatestPdfTrigger(doc *goquery.Document) (string, bool) {
	script := strings.TrimSpace(doc.Find(SelPdfTriggers).Last().AttrOr("onclick", ""))
	return script, script != ""
}

// PdfObjectRef returns the data reference of the <object> embedded in the
// order modal.
func PdfObjectRef(doc *goquery.Document) (string, bool) {
	ref := strings.TrimSpace(doc.Find(SelOrderModal+" object").First().AttrOr("data", ""))
	return ref, ref != ""
}

// ResolveRef resolves a document reference found in the portal against
// base.
func ResolveRef(base, ref string) (string, error) {
	baseUrl, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	refUrl, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse document ref: %w", err)
	}
	return baseUrl.ResolveReference(refUrl).String(), nil
}

type Outcome int

const (
	// OutcomePending means neither a result nor the captcha is visible yet.
	OutcomePending Outcome = iota
	// OutcomeResult means case links or the case detail are showing.
	OutcomeResult
	// OutcomeCaptcha means the captcha is still showing, the submission
	// was rejected.
	OutcomeCaptcha
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResult:
		return "result"
	case OutcomeCaptcha:
		return "captcha"
	default:
		return "pending"
	}
}

// SubmissionOutcome classifies the page shown after submitting the case
// number form.
func SubmissionOutcome(doc *goquery.Document) Outcome {
	if doc.Find(SelCaseLinks).Length() > 0 {
		return OutcomeResult
	}
	if strings.TrimSpace(doc.Find(SelDetail).Text()) != "" {
		return OutcomeResult
	}
	if doc.Find(selCaptchaImgOnly).Length() > 0 {
		return OutcomeCaptcha
	}
	return OutcomePending
}
