package casestatus

import (
	"context"
	"ecourts-backend/lib/browser"
	"ecourts-backend/lib/scrapers/ecourts"
	"fmt"
	"os"
	"path/filepath"
)

// ListStates starts a new flow for principal on a fresh session and
// returns the states the portal offers.
func (s *Service) ListStates(ctx context.Context, principal string) ([]string, error) {
	var states []string
	err := s.onSession(ctx, principal, "list-states", StageStatesListed, true, func(ctx context.Context, sess *session) error {
		options, err := s.loadOptions(ctx, sess, ecourts.SelState)
		if err != nil {
			return s.classify(StageStatesListed, report_stage_states, err, "loading states")
		}
		sess.forget(StageStatesListed)
		sess.states = options
		sess.stage = StageStatesListed
		states = options
		return nil
	})
	return states, err
}

// ListDistricts selects state and returns the districts it has.
func (s *Service) ListDistricts(ctx context.Context, principal, state string) ([]string, error) {
	stage := StageDistrictsListed
	if err := requireSelection(stage, "state", state); err != nil {
		return nil, err
	}

	var districts []string
	err := s.onSession(ctx, principal, "list-districts", stage, false, func(ctx context.Context, sess *session) error {
		if sess.states == nil {
			return newError(ErrBadRequest, stage, nil, "list states first")
		}
		err := checkSelection(stage, "state", state, sess.states)
		if err != nil {
			return err
		}

		options, err := s.selectAndLoad(ctx, sess, ecourts.SelState, state, ecourts.SelDistrict)
		if err != nil {
			return s.classify(stage, report_stage_districts, err, "loading districts")
		}
		sess.forget(StageDistrictsListed)
		sess.districts = options
		sess.stage = stage
		districts = options
		return nil
	})
	return districts, err
}

// ListCourts selects district and returns its court complexes.
func (s *Service) ListCourts(ctx context.Context, principal, district string) ([]string, error) {
	stage := StageCourtsListed
	if err := requireSelection(stage, "district", district); err != nil {
		return nil, err
	}

	var courts []string
	err := s.onSession(ctx, principal, "list-courts", stage, false, func(ctx context.Context, sess *session) error {
		if sess.districts == nil {
			return newError(ErrBadRequest, stage, nil, "list districts first")
		}
		err := checkSelection(stage, "district", district, sess.districts)
		if err != nil {
			return err
		}

		options, err := s.selectAndLoad(ctx, sess, ecourts.SelDistrict, district, ecourts.SelCourtComplex)
		if err != nil {
			return s.classify(stage, report_stage_courts, err, "loading court complexes")
		}
		sess.forget(StageCourtsListed)
		sess.courts = options
		sess.stage = stage
		courts = options
		return nil
	})
	return courts, err
}

type CaseTypesResult struct {
	CaseTypes []string
	// Captcha is the png the portal currently shows as its captcha.
	Captcha []byte
}

// ListCaseTypes selects court, opens the case number form, and returns
// the case types it offers together with the captcha to solve.
func (s *Service) ListCaseTypes(ctx context.Context, principal, court string) (CaseTypesResult, error) {
	stage := StageCaseTypesAndCaptcha
	if err := requireSelection(stage, "court", court); err != nil {
		return CaseTypesResult{}, err
	}

	var result CaseTypesResult
	err := s.onSession(ctx, principal, "list-case-types", stage, false, func(ctx context.Context, sess *session) error {
		if sess.courts == nil {
			return newError(ErrBadRequest, stage, nil, "list court complexes first")
		}
		err := checkSelection(stage, "court", court, sess.courts)
		if err != nil {
			return err
		}

		caseTypes, err := s.openCaseNumberForm(ctx, sess, court)
		if err != nil {
			return s.classify(stage, report_stage_case_types, err, "loading case types")
		}
		captcha, err := s.captureCaptcha(ctx, sess)
		if err != nil {
			return s.classify(stage, report_stage_captcha, err, "capturing the captcha")
		}

		sess.forget(StageCaseTypesAndCaptcha)
		sess.caseTypes = caseTypes
		sess.stage = stage
		result = CaseTypesResult{CaseTypes: caseTypes, Captcha: captcha}
		return nil
	})
	return result, err
}

// loadOptions waits for the dropdown at selector to be populated and
// reads its options.
func (s *Service) loadOptions(ctx context.Context, sess *session, selector string) ([]string, error) {
	err := sess.waiter.PresenceOf(ctx, selector)
	if err != nil {
		return nil, err
	}
	err = sess.waiter.Until(ctx, browser.OptionsLoaded(selector))
	if err != nil {
		return nil, fmt.Errorf("options of %s: %w", selector, err)
	}

	markup, err := sess.page.OuterHTML(ctx, selector)
	if err != nil {
		return nil, err
	}
	doc, err := ecourts.Parse(markup)
	if err != nil {
		return nil, err
	}
	return ecourts.Options(doc, selector), nil
}

// selectAndLoad picks value in the dropdown at selector and reads the
// dependent dropdown it populates.
func (s *Service) selectAndLoad(
	ctx context.Context,
	sess *session,
	selector, value, dependent string,
) ([]string, error) {
	err := sess.waiter.PresenceOf(ctx, selector)
	if err != nil {
		return nil, err
	}
	err = sess.page.SelectByText(ctx, selector, value)
	if err != nil {
		return nil, err
	}
	err = sleep(ctx, s.opts.SettleDelay)
	if err != nil {
		return nil, err
	}
	return s.loadOptions(ctx, sess, dependent)
}

func (s *Service) openCaseNumberForm(ctx context.Context, sess *session, court string) ([]string, error) {
	err := sess.waiter.PresenceOf(ctx, ecourts.SelCourtComplex)
	if err != nil {
		return nil, err
	}
	err = sess.page.SelectByText(ctx, ecourts.SelCourtComplex, court)
	if err != nil {
		return nil, err
	}
	err = sess.waiter.ClickableOf(ctx, ecourts.SelCaseNoTab)
	if err != nil {
		return nil, err
	}
	err = sess.page.Click(ctx, ecourts.SelCaseNoTab)
	if err != nil {
		return nil, err
	}
	return s.loadOptions(ctx, sess, ecourts.SelCaseType)
}

// captureCaptcha screenshots the captcha image into a scratch directory
// and returns the png. The scratch directory is removed on every path.
func (s *Service) captureCaptcha(ctx context.Context, sess *session) ([]byte, error) {
	err := sess.waiter.PresenceOf(ctx, ecourts.SelCaptchaImage)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(s.opts.TempDir, "captcha-*")
	if err != nil {
		return nil, fmt.Errorf("captcha scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "captcha.png")
	err = sess.page.Screenshot(ctx, ecourts.SelCaptchaImage, path)
	if err != nil {
		return nil, err
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read captcha capture: %w", err)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("captcha capture is empty")
	}
	return image, nil
}
