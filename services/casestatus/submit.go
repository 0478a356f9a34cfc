package casestatus

import (
	"context"
	"ecourts-backend/lib/browser"
	"ecourts-backend/lib/scrapers/ecourts"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type SubmitInput struct {
	CaseType    string
	CaseNumber  string
	CaseYear    string
	CaptchaText string
}

type SubmitResult struct {
	Record ecourts.CaseRecord
	// HTML is the case detail markup without scripts, styles and the
	// orders table.
	HTML string
	// PdfURL is the absolute url of the latest order, empty when the case
	// has no order documents.
	PdfURL string
}

// SubmitCase fills in and submits the case number form, then extracts the
// case the portal answers with. A rejected captcha fails with
// ErrValidationFailed carrying the fresh captcha, the session stays usable
// for another attempt.
func (s *Service) SubmitCase(ctx context.Context, principal string, input SubmitInput) (SubmitResult, error) {
	stage := StageSubmitted
	for _, field := range []struct{ name, value string }{
		{"case_type", input.CaseType},
		{"case_number", input.CaseNumber},
		{"case_year", input.CaseYear},
		{"captcha", input.CaptchaText},
	} {
		if err := requireValue(stage, field.name, field.value); err != nil {
			return SubmitResult{}, err
		}
	}

	var result SubmitResult
	err := s.onSession(ctx, principal, "submit", stage, false, func(ctx context.Context, sess *session) error {
		if sess.stage != StageCaseTypesAndCaptcha && sess.stage != StageCaptchaRejected {
			return newError(ErrBadRequest, stage, nil, "list case types first, the session is at %s", sess.stage)
		}
		err := checkSelection(stage, "case_type", input.CaseType, sess.caseTypes)
		if err != nil {
			return err
		}

		prev := sess.stage
		outcome, err := s.submitForm(ctx, sess, input)
		if err != nil {
			return s.classify(stage, report_submit_extract, err, "submitting the case number form")
		}
		sess.stage = StageSubmitted

		if outcome == ecourts.OutcomeCaptcha {
			return s.rejectCaptcha(ctx, sess)
		}

		result, err = s.extractResult(ctx, sess)
		if err != nil {
			// the form is still on the page, another submission may succeed
			sess.stage = prev
			return s.classify(stage, report_submit_extract, err, "extracting the case")
		}
		sess.pdfURL = result.PdfURL
		sess.stage = StageResultExtracted
		return nil
	})
	return result, err
}

func (s *Service) submitForm(ctx context.Context, sess *session, input SubmitInput) (ecourts.Outcome, error) {
	err := sess.waiter.PresenceOf(ctx, ecourts.SelCaseType)
	if err != nil {
		return ecourts.OutcomePending, err
	}
	err = sess.page.SelectByText(ctx, ecourts.SelCaseType, input.CaseType)
	if err != nil {
		return ecourts.OutcomePending, err
	}

	for _, field := range []struct{ selector, value string }{
		{ecourts.SelCaseNumber, strings.TrimSpace(input.CaseNumber)},
		{ecourts.SelCaseYear, strings.TrimSpace(input.CaseYear)},
		{ecourts.SelCaptchaText, strings.TrimSpace(input.CaptchaText)},
	} {
		err = sess.page.SetValue(ctx, field.selector, field.value)
		if err != nil {
			return ecourts.OutcomePending, err
		}
	}

	err = sess.page.Eval(ctx, ecourts.SubmitScript, nil)
	if err != nil {
		return ecourts.OutcomePending, fmt.Errorf("submit: %w", err)
	}
	err = sleep(ctx, s.opts.SettleDelay)
	if err != nil {
		return ecourts.OutcomePending, err
	}

	outcome := ecourts.OutcomePending
	err = sess.waiter.Until(ctx, func(ctx context.Context, page browser.Page) (bool, error) {
		doc, err := pageDocument(ctx, page, "html")
		if err != nil {
			return false, err
		}
		outcome = ecourts.SubmissionOutcome(doc)
		return outcome != ecourts.OutcomePending, nil
	})
	return outcome, err
}

func (s *Service) rejectCaptcha(ctx context.Context, sess *session) error {
	sess.stage = StageCaptchaRejected
	captchaRejections.Add(ctx, 1)

	rejected := newError(ErrValidationFailed, StageCaptchaRejected, nil, "the portal rejected the captcha, try again with the new one")
	captcha, err := s.captureCaptcha(ctx, sess)
	if browser.IsDead(err) {
		return err
	}
	if err != nil {
		s.tel.ReportWarning(report_stage_captcha, err)
		return rejected
	}
	rejected.Captcha = captcha
	return rejected
}

func (s *Service) extractResult(ctx context.Context, sess *session) (SubmitResult, error) {
	s.activateCaseLinks(ctx, sess)

	err := sess.waiter.PresenceOf(ctx, ecourts.SelDetail)
	if err != nil {
		return SubmitResult{}, err
	}
	detail, err := pageDocument(ctx, sess.page, ecourts.SelDetail)
	if err != nil {
		return SubmitResult{}, err
	}
	markup, err := detail.Find(ecourts.SelDetail).Html()
	if err != nil {
		return SubmitResult{}, err
	}

	raw, err := ecourts.Parse(markup)
	if err != nil {
		return SubmitResult{}, err
	}
	cleaned, err := ecourts.StripNoise(markup)
	if err != nil {
		return SubmitResult{}, err
	}
	record, err := ecourts.ParseCaseRecord(raw, cleaned, s.time.Now())
	if err != nil {
		return SubmitResult{}, err
	}
	cleanedHtml, err := cleaned.Find("body").Html()
	if err != nil {
		return SubmitResult{}, err
	}

	pdfURL, err := s.latestOrderURL(ctx, sess, raw)
	if err != nil {
		return SubmitResult{}, err
	}

	return SubmitResult{
		Record: record,
		HTML:   strings.TrimSpace(cleanedHtml),
		PdfURL: pdfURL,
	}, nil
}

// activateCaseLinks clicks through the intermediate case links listed
// after a submission. A link that fails is reported and skipped.
func (s *Service) activateCaseLinks(ctx context.Context, sess *session) {
	doc, err := pageDocument(ctx, sess.page, "html")
	if err != nil {
		s.tel.ReportWarning(report_submit_activate, err)
		return
	}

	for i, script := range ecourts.CaseLinkScripts(doc) {
		err := sess.page.Eval(ctx, script, nil)
		if err != nil {
			s.tel.ReportWarning(report_submit_activate, fmt.Errorf("case link %d: %w", i, err))
			if browser.IsDead(err) || ctx.Err() != nil {
				return
			}
			continue
		}
		if sleep(ctx, s.opts.LinkDelay) != nil {
			return
		}
	}
}

// latestOrderURL opens the latest order of the case and resolves the
// document it embeds. A case without orders has no url, problems opening
// the order are reported but do not fail the extraction.
func (s *Service) latestOrderURL(ctx context.Context, sess *session, raw *goquery.Document) (string, error) {
	trigger, ok := ecourts.LatestPdfTrigger(raw)
	if !ok {
		return "", nil
	}

	ref, err := s.openOrder(ctx, sess, trigger)
	if browser.IsDead(err) {
		return "", err
	}
	if err != nil {
		s.tel.ReportWarning(report_submit_pdf_link, err)
		return "", nil
	}
	return ref, nil
}

var errNoPdfRef = errors.New("order modal does not embed a document")

func (s *Service) openOrder(ctx context.Context, sess *session, trigger string) (string, error) {
	err := sess.page.Eval(ctx, trigger, nil)
	if err != nil {
		return "", fmt.Errorf("open order: %w", err)
	}
	err = sleep(ctx, s.opts.LinkDelay)
	if err != nil {
		return "", err
	}
	return s.readOrderModal(ctx, sess)
}

func (s *Service) readOrderModal(ctx context.Context, sess *session) (string, error) {
	err := sess.waiter.PresenceOf(ctx, ecourts.SelOrderModal)
	if err != nil {
		return "", err
	}
	doc, err := pageDocument(ctx, sess.page, ecourts.SelOrderModal)
	if err != nil {
		return "", err
	}
	ref, ok := ecourts.PdfObjectRef(doc)
	if !ok {
		return "", errNoPdfRef
	}
	return ecourts.ResolveRef(s.opts.Lifecycle.BaseURL, ref)
}

func pageDocument(ctx context.Context, page browser.Page, selector string) (*goquery.Document, error) {
	markup, err := page.OuterHTML(ctx, selector)
	if err != nil {
		return nil, err
	}
	return ecourts.Parse(markup)
}
