package browsertest

import (
	"fmt"
	"html"
	"strings"
)

// Portal scripts what the fake case-status portal serves. The zero value
// is a portal with no states at all.
type Portal struct {
	States    []string
	Districts map[string][]string
	Courts    map[string][]string
	CaseTypes map[string][]string

	// Captcha is the png served as the captcha image, every refresh
	// appends a generation byte so a fresh capture differs from the last.
	Captcha       []byte
	CaptchaAnswer string

	// CaseLinks is how many intermediate case links a successful
	// submission lists before the detail view, 0 shows the detail directly.
	CaseLinks int
	// BrokenLinks are the (0 based) case links whose activation fails.
	BrokenLinks map[int]bool

	// Detail is the inner html of the case detail container.
	Detail string
	// PdfObject is the data attribute of the order modal's <object>.
	PdfObject string

	// FailScreenshot makes captures write a partial file and then fail.
	FailScreenshot bool
}

const LandingURL = "https://portal.test/ecourtindia_v6/"

func writeSelect(out *strings.Builder, id, placeholder string, options []string) {
	fmt.Fprintf(out, `<select id="%s"><option value="">%s</option>`, id, placeholder)
	for i, opt := range options {
		fmt.Fprintf(out, `<option value="%d">%s</option>`, i+1, html.EscapeString(opt))
	}
	out.WriteString("</select>\n")
}

type phase int

const (
	phaseLanding phase = iota
	phaseForm
	phaseLinks
	phaseDetail
)

func (p *Page) render() string {
	var out strings.Builder
	out.WriteString("<html><head><title>eCourts</title></head><body>\n")

	if p.phase == phaseLanding {
		out.WriteString(`<a href="?p=casestatus/index&app_token=x">Case Status</a>` + "\n")
		out.WriteString("</body></html>")
		return out.String()
	}

	writeSelect(&out, "sess_state_code", "Select State", p.portal.States)
	var districts, courts, caseTypes []string
	if p.state != "" {
		districts = p.portal.Districts[p.state]
	}
	if p.district != "" {
		courts = p.portal.Courts[p.district]
	}
	writeSelect(&out, "sess_dist_code", "Select District", districts)
	writeSelect(&out, "court_complex_code", "Select Court Complex", courts)
	out.WriteString(`<a id="casenumber-tabMenu" href="#">Case Number</a>` + "\n")

	if p.caseTab {
		if p.court != "" {
			caseTypes = p.portal.CaseTypes[p.court]
		}
		writeSelect(&out, "case_type", "Select Case Type", caseTypes)
		for _, id := range []string{"search_case_no", "rgyear", "case_captcha_code"} {
			fmt.Fprintf(&out, `<input id="%s" value="%s" />`+"\n", id, html.EscapeString(p.fields["#"+id]))
		}
		if p.phase == phaseForm {
			fmt.Fprintf(&out, `<img id="captcha_image" src="captcha.png?v=%d" />`+"\n", p.captchaGen)
		}
	}

	if p.phase == phaseLinks {
		for i := 0; i < p.portal.CaseLinks; i++ {
			fmt.Fprintf(&out, `<a class="someclass" href="#" onclick="viewHistory(%d)">View</a>`+"\n", i)
		}
	}
	if p.phase == phaseDetail {
		fmt.Fprintf(&out, `<div id="CScaseNumber">%s</div>`+"\n", p.portal.Detail)
	}
	if p.modalOpen {
		fmt.Fprintf(
			&out,
			`<div id="modal_order_body"><object data="%s" type="application/pdf"></object></div>`+"\n",
			html.EscapeString(p.portal.PdfObject),
		)
	}

	out.WriteString("</body></html>")
	return out.String()
}
