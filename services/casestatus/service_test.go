package casestatus

import (
	"context"
	"ecourts-backend/internal/chrono"
	"ecourts-backend/internal/telemetry"
	"ecourts-backend/lib/browser/browsertest"
	"ecourts-backend/lib/timezone"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

//go:embed testdata/detail.html
var detailFixture string

var captchaPng = []byte("\x89PNG fake captcha")

var fixedNow = time.Date(2024, time.January, 11, 18, 30, 0, 0, timezone.Location)

func testPortal() browsertest.Portal {
	return browsertest.Portal{
		States: []string{"State A", "State B"},
		Districts: map[string][]string{
			"State A": {"District 1", "District 2"},
			"State B": {"District 3"},
		},
		Courts: map[string][]string{
			"District 1": {"Court X", "Court Y"},
		},
		CaseTypes: map[string][]string{
			"Court X": {"CS - Civil Suit", "CR - Criminal"},
		},
		Captcha:       captchaPng,
		CaptchaAnswer: "abc12",
		Detail:        detailFixture,
		PdfObject:     "reports/order_a3.pdf",
	}
}

func testOptions(t testing.TB) Options {
	opts := DefaultOptions()
	opts.Lifecycle.BaseURL = browsertest.LandingURL
	opts.Lifecycle.CreateBackoff = time.Millisecond
	opts.SettleDelay = 0
	opts.LinkDelay = 0
	opts.TempDir = t.TempDir()
	opts.Pdf.RequestsPerSecond = 0
	return opts
}

type fixture struct {
	service  *Service
	launcher *browsertest.Launcher
	tel      *telemetry.Recorder
	opts     Options
}

func setup(t testing.TB, launcher *browsertest.Launcher) fixture {
	t.Helper()
	tel := &telemetry.Recorder{}
	opts := testOptions(t)
	service, err := NewService(launcher, opts, chrono.FixedTime{T: fixedNow}, tel)
	require.NoError(t, err)
	t.Cleanup(service.Shutdown)
	return fixture{service: service, launcher: launcher, tel: tel, opts: opts}
}

// walkToCaptcha runs the flow up to and including listing case types.
func walkToCaptcha(t testing.TB, s *Service, principal string) CaseTypesResult {
	t.Helper()
	ctx := context.Background()

	_, err := s.ListStates(ctx, principal)
	require.NoError(t, err)
	_, err = s.ListDistricts(ctx, principal, "State A")
	require.NoError(t, err)
	_, err = s.ListCourts(ctx, principal, "District 1")
	require.NoError(t, err)
	result, err := s.ListCaseTypes(ctx, principal, "Court X")
	require.NoError(t, err)
	return result
}

func requireKind(t testing.TB, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, kind), "expected %s, got %v", kind, err)
	kerr, ok := AsError(err)
	require.True(t, ok)
	return kerr
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()

	var gotCookie atomic.Value
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("ECOURTS_SESSION")
		if err == nil {
			gotCookie.Store(cookie.Value)
		}
		w.Header().Set("content-type", "application/pdf")
		w.Write([]byte("%PDF-1.4 order"))
	}))
	defer upstream.Close()

	portal := testPortal()
	portal.PdfObject = upstream.URL + "/reports/order_a3.pdf"
	f := setup(t, &browsertest.Launcher{Portal: portal})
	s := f.service

	states, err := s.ListStates(ctx, "clerk")
	require.NoError(t, err)
	require.Equal(t, []string{"State A", "State B"}, states)

	districts, err := s.ListDistricts(ctx, "clerk", "State A")
	require.NoError(t, err)
	require.Equal(t, []string{"District 1", "District 2"}, districts)

	courts, err := s.ListCourts(ctx, "clerk", "District 1")
	require.NoError(t, err)
	require.Equal(t, []string{"Court X", "Court Y"}, courts)

	caseTypes, err := s.ListCaseTypes(ctx, "clerk", "Court X")
	require.NoError(t, err)
	require.Equal(t, []string{"CS - Civil Suit", "CR - Criminal"}, caseTypes.CaseTypes)
	require.Equal(t, append(append([]byte{}, captchaPng...), 0), caseTypes.Captcha)

	result, err := s.SubmitCase(ctx, "clerk", SubmitInput{
		CaseType:    "CS - Civil Suit",
		CaseNumber:  "567",
		CaseYear:    "2023",
		CaptchaText: "abc12",
	})
	require.NoError(t, err)
	require.Equal(t, "Principal District and Sessions Court, Pune", result.Record.CourtName)
	require.True(t, result.Record.NextHearing.Parsed)
	require.True(t, result.Record.NextHearing.IsTomorrow)
	require.Len(t, result.Record.Orders, 3)
	require.Equal(t, upstream.URL+"/reports/order_a3.pdf", result.PdfURL)
	require.NotContains(t, result.HTML, "<script")
	require.NotContains(t, result.HTML, "order_table")
	require.Contains(t, result.HTML, "case_details_table")

	sessions := s.Sessions()
	require.Len(t, sessions, 1)
	require.Equal(t, StageResultExtracted, sessions[0].Stage)
	require.True(t, sessions[0].Live)

	pdf, err := s.FetchPdf(ctx, "clerk")
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 order", string(pdf))
	require.Equal(t, "fake-1", gotCookie.Load())

	page := f.launcher.Last()
	require.Equal(t, 0, page.Closes())
	require.Equal(t, 0, page.Violations())

	s.CloseSession("clerk")
	require.Equal(t, 1, page.Closes())
	s.CloseSession("clerk")
	require.Equal(t, 1, page.Closes())
	require.Empty(t, s.Sessions())
	require.Equal(t, 1, f.launcher.Launches())
}

func TestListStatesRestartsFlow(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})

	walkToCaptcha(t, f.service, "clerk")
	first := f.launcher.Last()

	_, err := f.service.ListStates(ctx, "clerk")
	require.NoError(t, err)
	require.Equal(t, 1, first.Closes())
	require.Equal(t, 2, f.launcher.Launches())

	_, err = f.service.ListCourts(ctx, "clerk", "District 1")
	requireKind(t, err, ErrBadRequest)
}

func TestRegistryIsolation(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})
	s := f.service

	_, err := s.ListStates(ctx, "alice")
	require.NoError(t, err)
	_, err = s.ListStates(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, f.launcher.Pages(), 2)

	_, err = s.ListDistricts(ctx, "alice", "State B")
	require.NoError(t, err)

	s.CloseSession("alice")
	pages := f.launcher.Pages()
	require.Equal(t, 1, pages[0].Closes())
	require.Equal(t, 0, pages[1].Closes())

	districts, err := s.ListDistricts(ctx, "bob", "State A")
	require.NoError(t, err)
	require.Equal(t, []string{"District 1", "District 2"}, districts)

	_, err = s.ListCourts(ctx, "alice", "District 3")
	requireKind(t, err, ErrBadRequest)
}

func TestSamePrincipalIsSerialized(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal(), OpDelay: time.Millisecond})
	s := f.service

	principals := []string{"alice", "bob"}
	for _, principal := range principals {
		_, err := s.ListStates(ctx, principal)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 8; i++ {
		for _, principal := range principals {
			wg.Add(1)
			go func(principal string, i int) {
				defer wg.Done()
				state := "State A"
				if i%2 == 1 {
					state = "State B"
				}
				_, err := s.ListDistricts(ctx, principal, state)
				errs <- err
			}(principal, i)
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	for _, page := range f.launcher.Pages() {
		require.Equal(t, 0, page.Violations(), "page %d", page.ID())
	}
	require.Equal(t, 2, f.launcher.Launches())
}

func TestConcurrentFirstCallsCreateOneSession(t *testing.T) {
	f := setup(t, &browsertest.Launcher{Portal: testPortal(), OpDelay: time.Millisecond})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.service.Manager().Ensure(context.Background(), "clerk")
		}()
	}
	wg.Wait()

	require.Equal(t, 1, f.launcher.Launches())
	require.Equal(t, 1, f.service.registry.Len())
}

func TestEnsureIsIdempotentWhileLive(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})
	manager := f.service.Manager()

	require.NoError(t, manager.Ensure(ctx, "clerk"))
	require.NoError(t, manager.Ensure(ctx, "clerk"))
	require.NoError(t, manager.Ensure(ctx, "clerk"))

	require.Equal(t, 1, f.launcher.Launches())
	require.Equal(t, 0, f.launcher.Last().Closes())
}

func TestEnsureReplacesDeadSession(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})
	manager := f.service.Manager()

	require.NoError(t, manager.Ensure(ctx, "clerk"))
	dead := f.launcher.Last()
	dead.Kill()

	require.NoError(t, manager.Ensure(ctx, "clerk"))
	require.Equal(t, 2, f.launcher.Launches())
	require.Equal(t, 1, dead.Closes())
	require.NotEqual(t, dead.ID(), f.launcher.Last().ID())

	require.NoError(t, manager.Ensure(ctx, "clerk"))
	require.Equal(t, 2, f.launcher.Launches())
	require.Equal(t, 1, dead.Closes())
	require.Len(t, f.tel.Find("warning", report_lifecycle_probe), 1)
}

func TestForceReset(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})
	manager := f.service.Manager()

	require.NoError(t, manager.Ensure(ctx, "clerk"))
	manager.ForceReset("clerk")
	manager.ForceReset("clerk")
	require.Equal(t, 1, f.launcher.Last().Closes())

	require.NoError(t, manager.Ensure(ctx, "clerk"))
	require.Equal(t, 2, f.launcher.Launches())
}

func TestCreateRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("launch fails once", func(t *testing.T) {
		f := setup(t, &browsertest.Launcher{Portal: testPortal(), LaunchErrors: 1})
		_, err := f.service.ListStates(ctx, "clerk")
		require.NoError(t, err)
		require.Equal(t, 2, f.launcher.Launches())
		require.Len(t, f.tel.Find("warning", report_lifecycle_create), 1)
	})

	t.Run("bootstrap fails once", func(t *testing.T) {
		f := setup(t, &browsertest.Launcher{Portal: testPortal(), BrokenPages: 1})
		_, err := f.service.ListStates(ctx, "clerk")
		require.NoError(t, err)
		pages := f.launcher.Pages()
		require.Len(t, pages, 2)
		require.Equal(t, 1, pages[0].Closes())
		require.Equal(t, 0, pages[1].Closes())
	})

	t.Run("gives up", func(t *testing.T) {
		f := setup(t, &browsertest.Launcher{Portal: testPortal(), LaunchErrors: 5})
		_, err := f.service.ListStates(ctx, "clerk")
		kerr := requireKind(t, err, ErrDriverUnavailable)
		require.Equal(t, http.StatusServiceUnavailable, kerr.Kind.HTTPStatus())
		require.Equal(t, 2, f.launcher.Launches())
		require.Len(t, f.tel.Find("broken", report_lifecycle_create), 1)
	})
}

func TestUnlistedSelection(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})
	s := f.service

	_, err := s.ListStates(ctx, "clerk")
	require.NoError(t, err)

	_, err = s.ListDistricts(ctx, "clerk", "state a")
	kerr := requireKind(t, err, ErrInvalidSelection)
	require.Contains(t, kerr.Message, `did you mean "State A"?`)
	require.Equal(t, http.StatusBadRequest, kerr.Kind.HTTPStatus())

	_, err = s.ListDistricts(ctx, "clerk", "Atlantis")
	kerr = requireKind(t, err, ErrInvalidSelection)
	require.NotContains(t, kerr.Message, "did you mean")

	// a rejected selection leaves the flow where it was
	districts, err := s.ListDistricts(ctx, "clerk", "State A")
	require.NoError(t, err)
	require.Len(t, districts, 2)

	_, err = s.ListCourts(ctx, "clerk", "District 3")
	requireKind(t, err, ErrInvalidSelection)
}

func TestOutOfOrderCalls(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})
	s := f.service

	_, err := s.ListDistricts(ctx, "clerk", "State A")
	requireKind(t, err, ErrBadRequest)
	require.Equal(t, 0, f.launcher.Launches())

	_, err = s.ListStates(ctx, "clerk")
	require.NoError(t, err)
	_, err = s.ListCaseTypes(ctx, "clerk", "Court X")
	requireKind(t, err, ErrBadRequest)

	_, err = s.SubmitCase(ctx, "clerk", SubmitInput{CaseType: "x", CaseNumber: "1", CaseYear: "2020", CaptchaText: "y"})
	requireKind(t, err, ErrBadRequest)

	_, err = s.SubmitCase(ctx, "clerk", SubmitInput{CaseType: "x"})
	requireKind(t, err, ErrBadRequest)
}

func TestEmptySelection(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})
	s := f.service

	_, err := s.ListStates(ctx, "clerk")
	require.NoError(t, err)

	_, err = s.ListDistricts(ctx, "clerk", "")
	kerr := requireKind(t, err, ErrInvalidSelection)
	require.Equal(t, http.StatusBadRequest, kerr.Kind.HTTPStatus())
	require.Equal(t, StageDistrictsListed, kerr.Stage)

	_, err = s.ListDistricts(ctx, "clerk", "  ")
	requireKind(t, err, ErrInvalidSelection)

	_, err = s.ListDistricts(ctx, "clerk", "State A")
	require.NoError(t, err)
	_, err = s.ListCourts(ctx, "clerk", "")
	kerr = requireKind(t, err, ErrInvalidSelection)
	require.Equal(t, StageCourtsListed, kerr.Stage)

	_, err = s.ListCourts(ctx, "clerk", "District 1")
	require.NoError(t, err)
	_, err = s.ListCaseTypes(ctx, "clerk", "")
	kerr = requireKind(t, err, ErrInvalidSelection)
	require.Equal(t, StageCaseTypesAndCaptcha, kerr.Stage)

	// the flow is still where the empty choices found it
	_, err = s.ListCaseTypes(ctx, "clerk", "Court X")
	require.NoError(t, err)
	require.Equal(t, 1, f.launcher.Launches())
}

func TestSessionLossForcesRestart(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})
	s := f.service

	_, err := s.ListStates(ctx, "clerk")
	require.NoError(t, err)
	dead := f.launcher.Last()
	dead.Kill()

	_, err = s.ListDistricts(ctx, "clerk", "State A")
	kerr := requireKind(t, err, ErrSessionReset)
	require.Equal(t, http.StatusConflict, kerr.Kind.HTTPStatus())
	require.Equal(t, 1, dead.Closes())

	_, err = s.ListDistricts(ctx, "clerk", "State A")
	requireKind(t, err, ErrSessionReset)
	require.Equal(t, 1, f.launcher.Launches())

	_, err = s.ListStates(ctx, "clerk")
	require.NoError(t, err)
	require.Equal(t, 2, f.launcher.Launches())
	require.Equal(t, 1, dead.Closes())

	_, err = s.ListDistricts(ctx, "clerk", "State A")
	require.NoError(t, err)
}

func TestTimeoutKeepsSession(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})
	s := f.service

	_, err := s.ListStates(ctx, "clerk")
	require.NoError(t, err)
	_, err = s.ListDistricts(ctx, "clerk", "State A")
	require.NoError(t, err)

	// District 2 has no court complexes, the dropdown never populates
	_, err = s.ListCourts(ctx, "clerk", "District 2")
	kerr := requireKind(t, err, ErrTimeout)
	require.Equal(t, http.StatusGatewayTimeout, kerr.Kind.HTTPStatus())
	require.Equal(t, 0, f.launcher.Last().Closes())

	courts, err := s.ListCourts(ctx, "clerk", "District 1")
	require.NoError(t, err)
	require.Equal(t, []string{"Court X", "Court Y"}, courts)
	require.Equal(t, 1, f.launcher.Launches())
}

func TestStalledProbeKeepsSession(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})
	s := f.service

	_, err := s.ListStates(ctx, "clerk")
	require.NoError(t, err)
	page := f.launcher.Last()

	page.Stall()
	_, err = s.ListDistricts(ctx, "clerk", "State A")
	kerr := requireKind(t, err, ErrTimeout)
	require.Equal(t, http.StatusGatewayTimeout, kerr.Kind.HTTPStatus())
	require.Equal(t, 0, page.Closes())
	require.Len(t, f.tel.Find("warning", report_lifecycle_probe), 1)

	page.Resume()
	districts, err := s.ListDistricts(ctx, "clerk", "State A")
	require.NoError(t, err)
	require.Equal(t, []string{"District 1", "District 2"}, districts)
	require.Equal(t, 1, f.launcher.Launches())
}

func TestDefaultWaitCeiling(t *testing.T) {
	wait := DefaultOptions().Lifecycle.WaitTimeout
	require.GreaterOrEqual(t, wait, 20*time.Second)
	require.LessOrEqual(t, wait, 30*time.Second)
}

func TestCaptchaCaptureLeavesNothingBehind(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := setup(t, &browsertest.Launcher{Portal: testPortal()})
		walkToCaptcha(t, f.service, "clerk")

		leftovers, err := os.ReadDir(f.opts.TempDir)
		require.NoError(t, err)
		require.Empty(t, leftovers)
	})

	t.Run("capture fails", func(t *testing.T) {
		portal := testPortal()
		portal.FailScreenshot = true
		f := setup(t, &browsertest.Launcher{Portal: portal})
		ctx := context.Background()

		_, err := f.service.ListStates(ctx, "clerk")
		require.NoError(t, err)
		_, err = f.service.ListDistricts(ctx, "clerk", "State A")
		require.NoError(t, err)
		_, err = f.service.ListCourts(ctx, "clerk", "District 1")
		require.NoError(t, err)

		_, err = f.service.ListCaseTypes(ctx, "clerk", "Court X")
		requireKind(t, err, ErrExtractionFailed)

		leftovers, err := os.ReadDir(f.opts.TempDir)
		require.NoError(t, err)
		require.Empty(t, leftovers)
	})
}

func TestWrongCaptcha(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})
	s := f.service

	first := walkToCaptcha(t, s, "clerk")
	input := SubmitInput{
		CaseType:    "CS - Civil Suit",
		CaseNumber:  "567",
		CaseYear:    "2023",
		CaptchaText: "wrong",
	}

	_, err := s.SubmitCase(ctx, "clerk", input)
	kerr := requireKind(t, err, ErrValidationFailed)
	require.Equal(t, http.StatusUnprocessableEntity, kerr.Kind.HTTPStatus())
	require.Equal(t, StageCaptchaRejected, kerr.Stage)
	require.NotEmpty(t, kerr.Captcha)
	require.NotEqual(t, first.Captcha, kerr.Captcha)
	require.Equal(t, StageCaptchaRejected, s.Sessions()[0].Stage)

	input.CaptchaText = "abc12"
	result, err := s.SubmitCase(ctx, "clerk", input)
	require.NoError(t, err)
	require.Equal(t, "Principal District and Sessions Court, Pune", result.Record.CourtName)
	require.Equal(t, 1, f.launcher.Launches())
	require.Equal(t, 0, f.launcher.Last().Closes())
}

func TestUnknownCaseType(t *testing.T) {
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})
	walkToCaptcha(t, f.service, "clerk")

	_, err := f.service.SubmitCase(context.Background(), "clerk", SubmitInput{
		CaseType:    "CS - Civil Suits",
		CaseNumber:  "567",
		CaseYear:    "2023",
		CaptchaText: "abc12",
	})
	kerr := requireKind(t, err, ErrInvalidSelection)
	require.Contains(t, kerr.Message, `"CS - Civil Suit"`)
}

func TestFailingCaseLinkIsSkipped(t *testing.T) {
	portal := testPortal()
	portal.CaseLinks = 3
	portal.BrokenLinks = map[int]bool{0: true}
	f := setup(t, &browsertest.Launcher{Portal: portal})
	walkToCaptcha(t, f.service, "clerk")

	result, err := f.service.SubmitCase(context.Background(), "clerk", SubmitInput{
		CaseType:    "CR - Criminal",
		CaseNumber:  "12",
		CaseYear:    "2022",
		CaptchaText: "abc12",
	})
	require.NoError(t, err)
	require.Equal(t, "Principal District and Sessions Court, Pune", result.Record.CourtName)

	warnings := f.tel.Find("warning", report_submit_activate)
	require.Len(t, warnings, 1)
	require.Contains(t, fmt.Sprint(warnings[0].Params...), "case link 0")
}

func TestMissingDetailMarkup(t *testing.T) {
	portal := testPortal()
	portal.Detail = `<p>This Case Code does not exists</p>`
	f := setup(t, &browsertest.Launcher{Portal: portal})
	walkToCaptcha(t, f.service, "clerk")

	_, err := f.service.SubmitCase(context.Background(), "clerk", SubmitInput{
		CaseType:    "CS - Civil Suit",
		CaseNumber:  "1",
		CaseYear:    "1999",
		CaptchaText: "abc12",
	})
	kerr := requireKind(t, err, ErrExtractionFailed)
	require.Equal(t, http.StatusBadGateway, kerr.Kind.HTTPStatus())
	require.Equal(t, 0, f.launcher.Last().Closes())

	// the form can be submitted again without walking the dropdowns
	_, err = f.service.SubmitCase(context.Background(), "clerk", SubmitInput{
		CaseType:    "CS - Civil Suit",
		CaseNumber:  "1",
		CaseYear:    "1999",
		CaptchaText: "abc12",
	})
	requireKind(t, err, ErrExtractionFailed)
	require.Equal(t, 1, f.launcher.Launches())

	_, err = f.service.FetchPdf(context.Background(), "clerk")
	requireKind(t, err, ErrNotFound)
}

func TestFetchPdf(t *testing.T) {
	ctx := context.Background()

	t.Run("no case looked up", func(t *testing.T) {
		f := setup(t, &browsertest.Launcher{Portal: testPortal()})
		_, err := f.service.FetchPdf(ctx, "clerk")
		requireKind(t, err, ErrNotFound)
	})

	t.Run("before submitting", func(t *testing.T) {
		f := setup(t, &browsertest.Launcher{Portal: testPortal()})
		walkToCaptcha(t, f.service, "clerk")
		page := f.launcher.Last()
		before := len(page.Calls())

		_, err := f.service.FetchPdf(ctx, "clerk")
		kerr := requireKind(t, err, ErrNotFound)
		require.Equal(t, http.StatusNotFound, kerr.Kind.HTTPStatus())
		require.Equal(t, []string{"CurrentURL"}, page.Calls()[before:])
		require.Equal(t, 0, page.Closes())
	})

	t.Run("case without orders", func(t *testing.T) {
		portal := testPortal()
		portal.PdfObject = ""
		f := setup(t, &browsertest.Launcher{Portal: portal})
		walkToCaptcha(t, f.service, "clerk")
		result, err := f.service.SubmitCase(ctx, "clerk", SubmitInput{
			CaseType:    "CS - Civil Suit",
			CaseNumber:  "567",
			CaseYear:    "2023",
			CaptchaText: "abc12",
		})
		require.NoError(t, err)
		require.Empty(t, result.PdfURL)

		_, err = f.service.FetchPdf(ctx, "clerk")
		kerr := requireKind(t, err, ErrNotFound)
		require.Equal(t, http.StatusNotFound, kerr.Kind.HTTPStatus())
	})

	t.Run("upstream refuses", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer upstream.Close()

		portal := testPortal()
		portal.PdfObject = upstream.URL + "/order.pdf"
		f := setup(t, &browsertest.Launcher{Portal: portal})
		walkToCaptcha(t, f.service, "clerk")
		_, err := f.service.SubmitCase(ctx, "clerk", SubmitInput{
			CaseType:    "CS - Civil Suit",
			CaseNumber:  "567",
			CaseYear:    "2023",
			CaptchaText: "abc12",
		})
		require.NoError(t, err)

		_, err = f.service.FetchPdf(ctx, "clerk")
		kerr := requireKind(t, err, ErrUpstreamFetchFailed)
		require.Equal(t, http.StatusForbidden, kerr.UpstreamStatus)
		require.Equal(t, 0, f.launcher.Last().Closes())
	})

	t.Run("cached per principal", func(t *testing.T) {
		var hits atomic.Int32
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Write([]byte("%PDF"))
		}))
		defer upstream.Close()

		portal := testPortal()
		portal.PdfObject = upstream.URL + "/order.pdf"
		f := setup(t, &browsertest.Launcher{Portal: portal})
		walkToCaptcha(t, f.service, "clerk")
		_, err := f.service.SubmitCase(ctx, "clerk", SubmitInput{
			CaseType:    "CS - Civil Suit",
			CaseNumber:  "567",
			CaseYear:    "2023",
			CaptchaText: "abc12",
		})
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err = f.service.FetchPdf(ctx, "clerk")
			require.NoError(t, err)
		}
		require.EqualValues(t, 1, hits.Load())
	})
}

func TestReapIdle(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})
	s := f.service

	_, err := s.ListStates(ctx, "alice")
	require.NoError(t, err)
	_, err = s.ListStates(ctx, "bob")
	require.NoError(t, err)

	require.Equal(t, 0, s.ReapIdle(fixedNow.Add(f.opts.IdleTimeout-time.Second)))
	require.Len(t, s.Sessions(), 2)

	require.Equal(t, 2, s.ReapIdle(fixedNow.Add(f.opts.IdleTimeout+time.Second)))
	require.Empty(t, s.Sessions())
	for _, page := range f.launcher.Pages() {
		require.Equal(t, 1, page.Closes())
	}

	// a reaped principal starts from scratch
	_, err = s.ListDistricts(ctx, "alice", "State A")
	requireKind(t, err, ErrBadRequest)
}

func TestRunReaperStops(t *testing.T) {
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.service.RunReaper(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}

func TestCloseAll(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &browsertest.Launcher{Portal: testPortal()})

	for _, principal := range []string{"a", "b", "c"} {
		_, err := f.service.ListStates(ctx, principal)
		require.NoError(t, err)
	}
	f.service.Shutdown()

	for _, page := range f.launcher.Pages() {
		require.Equal(t, 1, page.Closes())
	}
	require.Equal(t, 0, f.service.registry.Len())
}
