// Package session owns the one browser session for a run and drives it
// through the login state machine: password, then optionally a two-factor
// or challenge code, until the bookmarks page is reached.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"bookmark-extract/lib/browser"
	"bookmark-extract/lib/platforms/twitter"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("services/session")

// State is the controller's position in the login flow. Exactly one is
// active at a time and only the controller mutates it, off of page
// location inspection.
type State int

const (
	StateInactive State = iota
	StateLoggedOut
	StateNeeds2FACode
	StateNeedsConfirmationCode
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged-out"
	case StateNeeds2FACode:
		return "needs-2fa-code"
	case StateNeedsConfirmationCode:
		return "needs-confirmation-code"
	case StateLoggedIn:
		return "logged-in"
	}
	return "inactive"
}

// NumProgressEvents is how many success events of a nominal run reach a
// forwarding orchestrator: initialize and login. Teardown's success
// lands after the orchestrator has unsubscribed. Progress displays
// pre-size off of this.
const NumProgressEvents = 2

// Gateway is the site client the controller steers. *twitter.Client
// implements it; tests substitute a fake.
type Gateway interface {
	SubmitCredentials(ctx context.Context, creds twitter.Credentials) (twitter.Location, error)
	SubmitTwoFactorCode(ctx context.Context, code string) (twitter.Location, error)
	SubmitChallengeCode(ctx context.Context, code string) (twitter.Location, error)
	GotoBookmarks(ctx context.Context) (twitter.Location, error)
	Location() twitter.Location
	Logout(ctx context.Context) (twitter.Location, error)
	Bookmarks() *twitter.Pager
	Close() error
}

// Controller is the authentication state machine. It never returns
// errors from its operations; outcomes surface on the event stream.
type Controller struct {
	events *emitter
	launch func(ctx context.Context, driverName string) (Gateway, error)

	mu       sync.Mutex
	state    State
	ready    bool
	released bool
	gateway  Gateway

	lastLoginFailed bool
	lastCodeFailed  bool
}

func NewController() *Controller {
	return &Controller{
		events: newEmitter(),
		launch: launchGateway,
		state:  StateInactive,
	}
}

func launchGateway(ctx context.Context, driverName string) (Gateway, error) {
	driver, err := browser.Lookup(driverName)
	if err != nil {
		return nil, err
	}
	sess, err := browser.NewSession(ctx, driver, twitter.BaseUrl)
	if err != nil {
		return nil, err
	}
	// in-memory page cache scoped to the session's lifetime
	cache, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		sess.Close()
		return nil, err
	}
	return twitter.NewClient(sess, twitter.ClientOptions{Cache: cache}), nil
}

// Subscribe registers a listener on the controller's event stream.
func (c *Controller) Subscribe(l Listener) Subscription {
	return c.events.subscribe(l)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LoggedOut reports "not yet past the gate": logged out or stuck at
// either code prompt.
func (c *Controller) LoggedOut() bool {
	s := c.State()
	return s == StateLoggedOut || s == StateNeeds2FACode || s == StateNeedsConfirmationCode
}

func (c *Controller) LoggedIn() bool {
	return c.State() == StateLoggedIn
}

func (c *Controller) Needs2FACode() bool {
	return c.State() == StateNeeds2FACode
}

func (c *Controller) NeedsConfirmationCode() bool {
	return c.State() == StateNeedsConfirmationCode
}

// LastLoginFailed reports whether the most recent credential submission
// was rejected.
func (c *Controller) LastLoginFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastLoginFailed
}

// LastCodeFailed reports whether the most recent code entry was rejected.
func (c *Controller) LastCodeFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCodeFailed
}

// Initialize binds the controller to one of the supported browser
// drivers and performs one-time session startup. An unknown driver name
// leaves the controller un-initialized.
func (c *Controller) Initialize(ctx context.Context, driverName string) {
	ctx, span := tracer.Start(ctx, "controller:Initialize")
	defer span.End()

	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		c.events.emit(Event{Kind: EventInternalError, Message: "controller is already initialized"})
		return
	}
	c.mu.Unlock()

	gateway, err := c.launch(ctx, driverName)
	if errors.Is(err, browser.ErrUnsupportedDriver) {
		c.events.emit(Event{
			Kind:    EventUserError,
			Message: "unsupported browser driver",
			Details: []string{err.Error()},
		})
		return
	}
	if err != nil {
		c.events.emit(Event{
			Kind:    EventInternalError,
			Message: "failed to start browser session",
			Details: []string{err.Error()},
		})
		return
	}

	c.mu.Lock()
	c.gateway = gateway
	c.ready = true
	c.released = false
	c.state = StateLoggedOut
	c.mu.Unlock()

	c.events.emit(Event{Kind: EventSuccess})
}

// requireReady guards operations that need an initialized controller.
func (c *Controller) requireReady(op string) (Gateway, bool) {
	c.mu.Lock()
	ready := c.ready
	gateway := c.gateway
	c.mu.Unlock()

	if !ready {
		c.events.emit(Event{
			Kind:    EventInternalError,
			Message: op + " requires an initialized controller",
		})
		return nil, false
	}
	return gateway, true
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// LogIn submits credentials and inspects where the site sent the session.
func (c *Controller) LogIn(ctx context.Context, creds twitter.Credentials) {
	ctx, span := tracer.Start(ctx, "controller:LogIn")
	defer span.End()

	gateway, ok := c.requireReady("logIn")
	if !ok {
		return
	}

	location, err := gateway.SubmitCredentials(ctx, creds)
	if err != nil {
		c.events.emit(Event{
			Kind:    EventInternalError,
			Message: "failed to submit credentials",
			Details: []string{err.Error()},
		})
		return
	}

	switch location {
	case twitter.LocationBookmarks:
		c.mu.Lock()
		c.lastLoginFailed = false
		c.mu.Unlock()
		c.setState(StateLoggedIn)
		c.events.emit(Event{Kind: EventSuccess})
	case twitter.LocationChallenge:
		c.setState(StateNeedsConfirmationCode)
		c.events.emit(Event{
			Kind:    EventActionRequired,
			Message: "a confirmation code is required to continue",
		})
	case twitter.LocationTwoFactor:
		c.setState(StateNeeds2FACode)
		c.events.emit(Event{
			Kind:    EventActionRequired,
			Message: "a two-factor code is required to continue",
		})
	default:
		c.mu.Lock()
		c.lastLoginFailed = true
		c.mu.Unlock()
		// force a refresh back toward the target page before retry
		_, refreshErr := gateway.GotoBookmarks(ctx)
		if refreshErr != nil {
			slog.WarnContext(ctx, "refresh after rejected login", "err", refreshErr)
		}
		c.events.emit(Event{Kind: EventUserError, Message: "incorrect credentials"})
	}
}

type codeSubmit func(ctx context.Context, code string) (twitter.Location, error)

// enterCode runs one code-entry round trip. If the site keeps us on the
// same code page the code was rejected and the state is left untouched so
// the caller may retry. If the location advanced we assert it actually
// reached the bookmarks page before claiming success, rather than
// trusting "not the code page" alone.
func (c *Controller) enterCode(ctx context.Context, codePage twitter.Location, pending State, submit codeSubmit, code string) {
	location, err := submit(ctx, code)
	if err != nil {
		c.events.emit(Event{
			Kind:    EventInternalError,
			Message: "failed to submit code",
			Details: []string{err.Error()},
		})
		return
	}

	if location == codePage {
		c.mu.Lock()
		c.lastCodeFailed = true
		c.mu.Unlock()
		c.setState(pending)
		c.events.emit(Event{Kind: EventUserError, Message: "incorrect code"})
		return
	}

	if location == twitter.LocationBookmarks {
		c.mu.Lock()
		c.lastCodeFailed = false
		c.mu.Unlock()
		c.setState(StateLoggedIn)
		c.events.emit(Event{Kind: EventSuccess})
		return
	}

	// advanced somewhere unexpected: stay retryable
	c.setState(pending)
	c.events.emit(Event{
		Kind:    EventUserError,
		Message: "code entry did not reach the bookmarks page",
		Details: []string{"landed on " + location.String() + " page"},
	})
}

// EnterConfirmationCode submits a login-challenge confirmation code.
func (c *Controller) EnterConfirmationCode(ctx context.Context, code string) {
	ctx, span := tracer.Start(ctx, "controller:EnterConfirmationCode")
	defer span.End()

	gateway, ok := c.requireReady("enterConfirmationCode")
	if !ok {
		return
	}
	c.enterCode(ctx, twitter.LocationChallenge, StateNeedsConfirmationCode, gateway.SubmitChallengeCode, code)
}

// EnterTwoFactorCode submits a two-factor code.
func (c *Controller) EnterTwoFactorCode(ctx context.Context, code string) {
	ctx, span := tracer.Start(ctx, "controller:EnterTwoFactorCode")
	defer span.End()

	gateway, ok := c.requireReady("enterTwoFactorCode")
	if !ok {
		return
	}
	c.enterCode(ctx, twitter.LocationTwoFactor, StateNeeds2FACode, gateway.SubmitTwoFactorCode, code)
}

// LogOut drives logout. Landing anywhere other than the logged-out page
// is treated as a warning, not an error, so teardown can't wedge on a
// page-detection mismatch.
func (c *Controller) LogOut(ctx context.Context, emitEvent bool) {
	ctx, span := tracer.Start(ctx, "controller:LogOut")
	defer span.End()

	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return
	}
	gateway := c.gateway
	c.mu.Unlock()

	location, err := gateway.Logout(ctx)
	if err != nil {
		slog.WarnContext(ctx, "logout request failed", "err", err)
		return
	}
	if location != twitter.LocationLoggedOut {
		slog.WarnContext(ctx, "logout did not land on the logged-out page", "location", location.String())
		return
	}

	c.setState(StateLoggedOut)
	if emitEvent {
		c.events.emit(Event{Kind: EventSuccess})
	}
}

// TearDown releases the browser session from any state. A logged-in
// session is logged out silently first. Resource release is idempotent
// and unconditional; success is emitted last.
func (c *Controller) TearDown(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "controller:TearDown")
	defer span.End()

	if c.LoggedIn() {
		c.LogOut(ctx, false)
	}

	c.mu.Lock()
	gateway := c.gateway
	alreadyReleased := c.released
	c.released = true
	c.ready = false
	c.state = StateInactive
	c.mu.Unlock()

	if gateway != nil && !alreadyReleased {
		err := gateway.Close()
		if err != nil {
			slog.WarnContext(ctx, "release browser session", "err", err)
		}
	}

	c.events.emit(Event{Kind: EventSuccess})
}

// Bookmarks hands out the paginated bookmark source for the extraction
// pipeline. The pipeline borrows the session; it must not outlive the
// controller's open/close bracket.
func (c *Controller) Bookmarks() *twitter.Pager {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gateway == nil {
		return nil
	}
	return c.gateway.Bookmarks()
}
