package restyutil

import (
	"net/http/cookiejar"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

type ClientOptions struct {
	UserAgent string
	Timeout   time.Duration
	// RequestsPerSecond of 0 disables rate limiting.
	RequestsPerSecond float64
	// AllowedHosts restricts redirects, empty allows any host.
	AllowedHosts []string
	// NoCookieJar leaves cookies entirely to the caller, for clients
	// shared between users that must not see each other's cookies.
	NoCookieJar bool
}

// NewClient creates a resty client with a cookie jar and a transport that
// looks like a regular browser to the portal's bot protection.
func NewClient(opts ClientOptions) (*resty.Client, error) {
	client := resty.New()
	if opts.NoCookieJar {
		client.SetCookieJar(nil)
	} else {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		client.SetCookieJar(jar)
	}
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	if opts.UserAgent != "" {
		client.SetHeader("user-agent", opts.UserAgent)
	}
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if len(opts.AllowedHosts) > 0 {
		client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(opts.AllowedHosts...))
	}

	if opts.RequestsPerSecond > 0 {
		// max burst >= 1 just means that no requests will be dropped
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	return client, nil
}
