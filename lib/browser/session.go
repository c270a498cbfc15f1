package browser

import (
	"context"
	"net/http/cookiejar"
	"net/url"
	"sync"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/dubonzi/otelresty"
	"github.com/go-resty/resty/v2"
)

// Session is the single shared browsing resource for a run. It must only
// ever be referenced by its owning controller, never copied; all page
// access is serialized through it.
type Session struct {
	driver  Driver
	baseUrl *url.URL
	http    *resty.Client

	mu       sync.Mutex
	location *url.URL
	closed   bool
}

// NewSession builds a cookie-jar session for the given driver against
// baseUrl. The current location starts at baseUrl and is updated after
// every request, following redirects.
func NewSession(ctx context.Context, driver Driver, baseUrl string) (*Session, error) {
	base, err := url.Parse(baseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(baseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", driver.UserAgent)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	otelresty.TraceClient(client, otelresty.WithTracerName("lib/browser"))

	s := &Session{
		driver:   driver,
		baseUrl:  base,
		http:     client,
		location: base,
	}
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		if res.RawResponse != nil && res.RawResponse.Request != nil {
			s.setLocation(res.RawResponse.Request.URL)
		}
		return nil
	})
	return s, nil
}

func (s *Session) Driver() Driver {
	return s.driver
}

// Http exposes the underlying client for page fetches. Callers must hold
// the session open/close bracket for the duration of any request.
func (s *Session) Http() *resty.Client {
	return s.http
}

func (s *Session) setLocation(u *url.URL) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = u
}

// Location is the URL of the page the session last landed on.
func (s *Session) Location() *url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// Open navigates to path and returns the response.
func (s *Session) Open(ctx context.Context, path string) (*resty.Response, error) {
	if s.Closed() {
		return nil, ErrSessionClosed
	}
	return s.http.R().SetContext(ctx).Get(path)
}

// SubmitForm posts form-encoded values to path, following redirects.
func (s *Session) SubmitForm(ctx context.Context, path string, values url.Values) (*resty.Response, error) {
	if s.Closed() {
		return nil, ErrSessionClosed
	}
	return s.http.R().
		SetContext(ctx).
		SetBody(values.Encode()).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		Post(path)
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the session. It is idempotent; requests made afterwards
// fail with ErrSessionClosed. Cookies die with the session, they are
// never persisted.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.http.SetCookieJar(nil)
}
