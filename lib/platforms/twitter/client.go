// Package twitter drives the site's login and bookmark pages through one
// browser session. Form pages are read with goquery, the bookmark
// timeline comes back as paginated JSON.
package twitter

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"bookmark-extract/lib/browser"
	"bookmark-extract/lib/recordset"
	"bookmark-extract/lib/restyutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("platforms/twitter")

var instrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput dumps every request/response made by clients
// created after this call to the given output.
func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	instrumentOutput = output
}

type Credentials struct {
	Username string
	Password string
}

type Client struct {
	session *browser.Session
	cache   pageCache
}

type ClientOptions struct {
	// optional, enables the in-run page cache
	Cache *badger.DB
}

func NewClient(session *browser.Session, opts ClientOptions) *Client {
	if instrumentOutput != nil {
		restyutil.InstrumentClient(session.Http(), instrumentOutput)
	}
	return &Client{
		session: session,
		cache:   pageCache{db: opts.Cache},
	}
}

// Location classifies the page the session last landed on.
func (c *Client) Location() Location {
	return Classify(c.session.Location())
}

// Open navigates to the login form.
func (c *Client) Open(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Open")
	defer span.End()

	_, err := c.session.Open(ctx, loginPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}
	return nil
}

// authenticityToken pulls the hidden form token off the current page.
func (c *Client) authenticityToken(ctx context.Context, path string) (string, error) {
	res, err := c.session.Open(ctx, path)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return "", err
	}
	token := doc.Find("input[name=authenticity_token]").AttrOr("value", "")
	if token == "" {
		return "", fmt.Errorf("could not find authenticity token")
	}
	return token, nil
}

// SubmitCredentials posts the login form and reports where the site sent
// us. LocationLogin means the credentials were rejected.
func (c *Client) SubmitCredentials(ctx context.Context, creds Credentials) (Location, error) {
	ctx, span := tracer.Start(ctx, "client:SubmitCredentials")
	defer span.End()

	token, err := c.authenticityToken(ctx, loginPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to find login token")
		return LocationUnknown, err
	}

	values := url.Values{
		"authenticity_token":         {token},
		"session[username_or_email]": {creds.Username},
		"session[password]":          {creds.Password},
	}
	_, err = c.session.SubmitForm(ctx, sessionsPath, values)
	if err != nil {
		span.SetStatus(codes.Error, "failed to post login form")
		return LocationUnknown, err
	}
	return c.Location(), nil
}

func (c *Client) submitCode(ctx context.Context, path, field, code string) (Location, error) {
	token, err := c.authenticityToken(ctx, path)
	if err != nil {
		return LocationUnknown, err
	}
	values := url.Values{
		"authenticity_token": {token},
		field:                {code},
	}
	_, err = c.session.SubmitForm(ctx, path, values)
	if err != nil {
		return LocationUnknown, err
	}
	return c.Location(), nil
}

// SubmitTwoFactorCode posts a 2FA code. If the location still reads
// two-factor afterwards, the code was rejected.
func (c *Client) SubmitTwoFactorCode(ctx context.Context, code string) (Location, error) {
	ctx, span := tracer.Start(ctx, "client:SubmitTwoFactorCode")
	defer span.End()
	return c.submitCode(ctx, twoFactorPath, "challenge_response", code)
}

// SubmitChallengeCode posts a login-challenge confirmation code.
func (c *Client) SubmitChallengeCode(ctx context.Context, code string) (Location, error) {
	ctx, span := tracer.Start(ctx, "client:SubmitChallengeCode")
	defer span.End()
	return c.submitCode(ctx, challengePath, "challenge_response", code)
}

// GotoBookmarks forces navigation back toward the bookmarks page.
func (c *Client) GotoBookmarks(ctx context.Context) (Location, error) {
	ctx, span := tracer.Start(ctx, "client:GotoBookmarks")
	defer span.End()

	_, err := c.session.Open(ctx, bookmarksPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to open bookmarks page")
		return LocationUnknown, err
	}
	return c.Location(), nil
}

// Logout drives the logout form.
func (c *Client) Logout(ctx context.Context) (Location, error) {
	ctx, span := tracer.Start(ctx, "client:Logout")
	defer span.End()

	token, err := c.authenticityToken(ctx, logoutPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to find logout token")
		return LocationUnknown, err
	}
	_, err = c.session.SubmitForm(ctx, logoutPath, url.Values{
		"authenticity_token": {token},
	})
	if err != nil {
		span.SetStatus(codes.Error, "failed to post logout form")
		return LocationUnknown, err
	}
	return c.Location(), nil
}

// Close releases the underlying browser session and the page cache.
// Idempotent.
func (c *Client) Close() error {
	c.session.Close()
	if c.cache.db != nil {
		return c.cache.db.Close()
	}
	return nil
}

// Bookmarks returns a pager over the saved-bookmarks timeline. Only one
// pager should be live per client, it issues one pull at a time against
// the shared session.
func (c *Client) Bookmarks() *Pager {
	return &Pager{client: c}
}

// Pager walks the bookmark timeline cursor by cursor.
type Pager struct {
	client    *Client
	cursor    string
	exhausted bool
}

// Open navigates the session to the bookmarks page before the first pull.
func (p *Pager) Open(ctx context.Context) error {
	loc, err := p.client.GotoBookmarks(ctx)
	if err != nil {
		return err
	}
	if loc != LocationBookmarks {
		return fmt.Errorf("expected to land on bookmarks, got %s page", loc)
	}
	return nil
}

// NextBatch pulls one page of bookmarks. The second return reports
// whether more pages remain.
func (p *Pager) NextBatch(ctx context.Context) ([]recordset.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "pager:NextBatch")
	defer span.End()

	if p.exhausted {
		return nil, false, nil
	}

	query := url.Values{}
	if p.cursor != "" {
		query.Set("cursor", p.cursor)
	}
	endpoint := bookmarksApiPath
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	body, cached := p.client.cache.get(ctx, endpoint)
	if !cached {
		res, err := p.client.session.Open(ctx, endpoint)
		if err != nil {
			span.SetStatus(codes.Error, "failed to fetch bookmarks page")
			return nil, false, err
		}
		body = res.Body()
		p.client.cache.set(ctx, endpoint, body, time.Minute*10)
	}

	page, err := parseBookmarksPage(body)
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse bookmarks page")
		return nil, false, err
	}

	p.cursor = page.NextCursor
	p.exhausted = !page.HasMore
	return page.Records, page.HasMore, nil
}
