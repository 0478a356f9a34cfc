// Package browsertest provides a deterministic, in-memory stand-in for a
// browser tab driving the case-status portal.
package browsertest

import (
	"bytes"
	"context"
	"ecourts-backend/lib/browser"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page is a fake browser.Page. Every method records whether it was entered
// while another call was still in flight, which a correctly serialized
// caller never does.
type Page struct {
	id     int
	portal Portal
	delay  time.Duration

	inflight   atomic.Int32
	violations atomic.Int32
	closes     atomic.Int32
	dead       atomic.Bool
	stalled    atomic.Bool
	broken     bool

	mu          sync.Mutex
	calls       []string
	url         string
	phase       phase
	state       string
	district    string
	court       string
	caseType    string
	caseTab     bool
	fields      map[string]string
	captchaGen  int
	linksActive int
	modalOpen   bool
}

func newPage(id int, portal Portal, delay time.Duration, broken bool) *Page {
	return &Page{
		id:     id,
		portal: portal,
		delay:  delay,
		broken: broken,
		fields: map[string]string{},
	}
}

func (p *Page) enter(call string) func() {
	if p.inflight.Add(1) > 1 {
		p.violations.Add(1)
	}
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return func() {
		p.inflight.Add(-1)
	}
}

// ID is the launch ordinal of the page, starting at 1.
func (p *Page) ID() int {
	return p.id
}

// Violations is the number of calls that overlapped another call.
func (p *Page) Violations() int {
	return int(p.violations.Load())
}

// Closes is the number of times Close was called.
func (p *Page) Closes() int {
	return int(p.closes.Load())
}

// Kill makes the page behave like a crashed tab.
func (p *Page) Kill() {
	p.dead.Store(true)
}

// Stall makes every call time out until Resume, like a tab that stopped
// answering without crashing.
func (p *Page) Stall() {
	p.stalled.Store(true)
}

func (p *Page) Resume() {
	p.stalled.Store(false)
}

// Calls returns the names of the methods called so far, in order.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *Page) alive() error {
	if p.dead.Load() || p.closes.Load() > 0 {
		return fmt.Errorf("%w: fake page %d is gone", browser.ErrSessionInvalid, p.id)
	}
	if p.stalled.Load() {
		return fmt.Errorf("%w: fake page %d is not answering", browser.ErrTimeout, p.id)
	}
	return nil
}

func (p *Page) document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(p.render()))
}

func (p *Page) find(selector string) (*goquery.Selection, error) {
	doc, err := p.document()
	if err != nil {
		return nil, err
	}
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", browser.ErrNotFound, selector)
	}
	return sel, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	defer p.enter("Navigate")()
	if err := p.alive(); err != nil {
		return err
	}
	if p.broken {
		return fmt.Errorf("net::ERR_CONNECTION_RESET")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.phase = phaseLanding
	p.state, p.district, p.court, p.caseType = "", "", "", ""
	p.caseTab = false
	p.modalOpen = false
	p.fields = map[string]string{}
	return nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	defer p.enter("CurrentURL")()
	if err := p.alive(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	defer p.enter("Click")()
	if err := p.alive(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.find(selector); err != nil {
		return err
	}
	switch {
	case strings.Contains(selector, "casestatus/index"):
		p.phase = phaseForm
		p.url = LandingURL + "?p=casestatus/index"
	case selector == "#casenumber-tabMenu":
		p.caseTab = true
	}
	return nil
}

func (p *Page) SelectByText(ctx context.Context, selector, text string) error {
	defer p.enter("SelectByText")()
	if err := p.alive(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	sel, err := p.find(selector)
	if err != nil {
		return err
	}
	found := false
	sel.Find("option").Each(func(i int, opt *goquery.Selection) {
		if i > 0 && strings.TrimSpace(opt.Text()) == text {
			found = true
		}
	})
	if !found {
		return fmt.Errorf("%w: %q in %s", browser.ErrNoSuchOption, text, selector)
	}

	switch selector {
	case "#sess_state_code":
		p.state, p.district, p.court = text, "", ""
	case "#sess_dist_code":
		p.district, p.court = text, ""
	case "#court_complex_code":
		p.court = text
	case "#case_type":
		p.caseType = text
	}
	return nil
}

func (p *Page) SetValue(ctx context.Context, selector, value string) error {
	defer p.enter("SetValue")()
	if err := p.alive(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.find(selector); err != nil {
		return err
	}
	p.fields[selector] = value
	return nil
}

var linkScript = regexp.MustCompile(`^viewHistory\((\d+)\)`)

func (p *Page) Eval(ctx context.Context, script string, out any) error {
	defer p.enter("Eval")()
	if err := p.alive(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	script = strings.TrimSpace(script)
	switch {
	case script == "submitCaseNo();":
		p.submit()
		return nil
	case linkScript.MatchString(script):
		n, _ := strconv.Atoi(linkScript.FindStringSubmatch(script)[1])
		if p.phase != phaseLinks && p.phase != phaseDetail {
			return fmt.Errorf("javascript error: viewHistory is not defined")
		}
		if p.portal.BrokenLinks[n] {
			return fmt.Errorf("javascript error: link %d failed", n)
		}
		p.linksActive++
		p.phase = phaseDetail
		return nil
	case strings.HasPrefix(script, "displayPdf("):
		if p.phase != phaseDetail {
			return fmt.Errorf("javascript error: displayPdf is not defined")
		}
		p.modalOpen = p.portal.PdfObject != ""
		return nil
	}
	return fmt.Errorf("browsertest: unsupported script %q", script)
}

func (p *Page) submit() {
	valid := p.caseType != "" &&
		p.fields["#search_case_no"] != "" &&
		p.fields["#rgyear"] != "" &&
		p.fields["#case_captcha_code"] == p.portal.CaptchaAnswer
	if !valid {
		p.captchaGen++
		return
	}
	if p.portal.CaseLinks > 0 {
		p.phase = phaseLinks
		return
	}
	p.phase = phaseDetail
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	defer p.enter("Count")()
	if err := p.alive(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.document()
	if err != nil {
		return 0, err
	}
	return doc.Find(selector).Length(), nil
}

func (p *Page) OuterHTML(ctx context.Context, selector string) (string, error) {
	defer p.enter("OuterHTML")()
	if err := p.alive(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	sel, err := p.find(selector)
	if err != nil {
		return "", err
	}
	return goquery.OuterHtml(sel.First())
}

func (p *Page) Screenshot(ctx context.Context, selector, path string) error {
	defer p.enter("Screenshot")()
	if err := p.alive(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.find(selector); err != nil {
		return err
	}
	capture := append(bytes.Clone(p.portal.Captcha), byte(p.captchaGen))
	if p.portal.FailScreenshot {
		os.WriteFile(path, capture[:len(capture)/2], 0600)
		return fmt.Errorf("browsertest: capture interrupted")
	}
	return os.WriteFile(path, capture, 0600)
}

func (p *Page) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	defer p.enter("Cookies")()
	if err := p.alive(); err != nil {
		return nil, err
	}
	return []browser.Cookie{{
		Name:   "ECOURTS_SESSION",
		Value:  fmt.Sprintf("fake-%d", p.id),
		Domain: "portal.test",
		Path:   "/",
	}}, nil
}

func (p *Page) Waiter(timeout time.Duration) browser.Waiter {
	return waiter{page: p}
}

func (p *Page) Close() error {
	p.closes.Add(1)
	return nil
}

// waiter checks its condition exactly once, the fake portal updates
// synchronously so anything not true immediately never will be.
type waiter struct {
	page *Page
}

func (w waiter) PresenceOf(ctx context.Context, selector string) error {
	n, err := w.page.Count(ctx, selector)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("presence of %s: %w", selector, browser.ErrTimeout)
	}
	return nil
}

func (w waiter) ClickableOf(ctx context.Context, selector string) error {
	return w.PresenceOf(ctx, selector)
}

func (w waiter) Until(ctx context.Context, cond browser.Condition) error {
	ok, err := cond(ctx, w.page)
	if err != nil {
		return err
	}
	if !ok {
		return browser.ErrTimeout
	}
	return nil
}
