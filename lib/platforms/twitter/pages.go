package twitter

import (
	"net/url"
	"strings"
)

// BaseUrl is the mobile site, which keeps the login and bookmark pages
// form-based instead of fully scripted.
const BaseUrl = "https://mobile.twitter.com"

const (
	loginPath        = "/login"
	sessionsPath     = "/sessions"
	twoFactorPath    = "/account/login_verification"
	challengePath    = "/account/login_challenge"
	bookmarksPath    = "/i/bookmarks"
	logoutPath       = "/logout"
	bookmarksApiPath = "/i/api/bookmarks/all.json"
)

// Location classifies which known page the session currently sits on.
// The authentication state machine is driven entirely off of these.
type Location int

const (
	LocationUnknown Location = iota
	LocationLogin
	LocationTwoFactor
	LocationChallenge
	LocationBookmarks
	LocationLoggedOut
)

func (l Location) String() string {
	switch l {
	case LocationLogin:
		return "login"
	case LocationTwoFactor:
		return "two-factor"
	case LocationChallenge:
		return "challenge"
	case LocationBookmarks:
		return "bookmarks"
	case LocationLoggedOut:
		return "logged-out"
	}
	return "unknown"
}

// Classify maps a page URL to its Location. Credential rejection lands
// back on the login form, so LocationLogin doubles as "rejected".
func Classify(u *url.URL) Location {
	if u == nil {
		return LocationUnknown
	}
	path := u.Path
	switch {
	case strings.HasPrefix(path, bookmarksPath):
		return LocationBookmarks
	case strings.HasPrefix(path, twoFactorPath):
		return LocationTwoFactor
	case strings.HasPrefix(path, challengePath):
		return LocationChallenge
	case strings.HasPrefix(path, logoutPath):
		return LocationLoggedOut
	case strings.HasPrefix(path, loginPath), strings.HasPrefix(path, sessionsPath):
		return LocationLogin
	}
	return LocationUnknown
}
