package casestatus

import (
	"context"
	"ecourts-backend/internal/telemetry"
	"ecourts-backend/lib/browser"
	"ecourts-backend/lib/restyutil"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type PdfOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
	// CacheSize is how many downloaded documents are kept, 0 disables
	// caching.
	CacheSize int
	CacheTTL  time.Duration
	// DumpDir receives every exchange with the portal while debug logging
	// is enabled, empty disables dumping.
	DumpDir string
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

func DefaultPdfOptions() PdfOptions {
	return PdfOptions{
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
		UserAgent:         defaultUserAgent,
		CacheSize:         64,
		CacheTTL:          10 * time.Minute,
	}
}

// pdfFetcher downloads order documents outside of the browser, presenting
// the cookies of the session that found them.
type pdfFetcher struct {
	client *resty.Client
	cache  *expirable.LRU[string, []byte]
	tel    telemetry.API
}

func newPdfFetcher(opts PdfOptions, tel telemetry.API) (*pdfFetcher, error) {
	client, err := restyutil.NewClient(restyutil.ClientOptions{
		UserAgent:         opts.UserAgent,
		Timeout:           opts.Timeout,
		RequestsPerSecond: opts.RequestsPerSecond,
		NoCookieJar:       true,
	})
	if err != nil {
		return nil, err
	}

	var output restyutil.InstrumentOutput
	if opts.DumpDir != "" {
		fsOutput, err := restyutil.NewFilesystemOutput(opts.DumpDir)
		if err != nil {
			return nil, err
		}
		output = fsOutput
	}
	restyutil.InstrumentClient(client, tracer, output)

	f := &pdfFetcher{client: client, tel: tel}
	if opts.CacheSize > 0 {
		f.cache = expirable.NewLRU[string, []byte](opts.CacheSize, nil, opts.CacheTTL)
	}
	return f, nil
}

func (f *pdfFetcher) fetch(ctx context.Context, principal, url string, cookies []browser.Cookie) ([]byte, error) {
	key := principal + "\x00" + url
	if f.cache != nil {
		cached, ok := f.cache.Get(key)
		if ok {
			return cached, nil
		}
	}

	req := f.client.R().SetContext(ctx)
	for _, c := range cookies {
		req.SetCookie(&http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}

	res, err := req.Get(url)
	if err != nil {
		f.tel.ReportWarning(report_pdf_fetch, err)
		return nil, newError(ErrUpstreamFetchFailed, StageResultExtracted, err, "could not download the order")
	}
	if res.StatusCode() != http.StatusOK {
		f.tel.ReportWarning(report_pdf_fetch, fmt.Errorf("portal answered %s", res.Status()))
		fetchErr := newError(
			ErrUpstreamFetchFailed, StageResultExtracted, nil,
			"portal answered the order download with status %d", res.StatusCode(),
		)
		fetchErr.UpstreamStatus = res.StatusCode()
		return nil, fetchErr
	}

	body := res.Body()
	if f.cache != nil {
		f.cache.Add(key, body)
	}
	return body, nil
}

// FetchPdf downloads the latest order of the case principal looked up
// last. The session is left open.
func (s *Service) FetchPdf(ctx context.Context, principal string) ([]byte, error) {
	stage := StageResultExtracted

	var url string
	var cookies []browser.Cookie
	err := s.onSession(ctx, principal, "fetch-pdf", stage, false, func(ctx context.Context, sess *session) error {
		if sess.stage != StageResultExtracted {
			return newError(ErrNotFound, stage, nil, "no case has been looked up, the session is at %s", sess.stage)
		}
		url = sess.pdfURL
		if url == "" {
			ref, err := s.readOrderModal(ctx, sess)
			if browser.IsDead(err) {
				return err
			}
			if err != nil {
				return newError(ErrNotFound, stage, err, "no order document found for the current case")
			}
			url = ref
		}

		var err error
		cookies, err = sess.page.Cookies(ctx)
		if err != nil {
			return s.classify(stage, report_pdf_fetch, err, "reading session cookies")
		}
		return nil
	})
	if errors.Is(err, ErrBadRequest) {
		return nil, newError(ErrNotFound, stage, nil, "no case has been looked up")
	}
	if err != nil {
		return nil, err
	}

	return s.pdf.fetch(ctx, principal, url, cookies)
}
