// Package browser owns the one authenticated browsing session used for a
// run. It exposes a fixed registry of supported drivers and a cookie-backed
// session whose current page location is tracked across redirects.
package browser

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

var (
	ErrUnsupportedDriver = errors.New("unsupported browser driver")
	ErrSessionClosed     = errors.New("browser session closed")
)

// Driver describes one supported browser personality.
type Driver struct {
	Name      string
	UserAgent string
}

var drivers = map[string]Driver{
	"chrome": {
		Name:      "chrome",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	},
	"chromium": {
		Name:      "chromium",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	},
	"edge": {
		Name:      "edge",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.0.0",
	},
	"firefox": {
		Name:      "firefox",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
	},
}

// SupportedDrivers returns the registry's driver names, sorted.
func SupportedDrivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a driver by name. Validation happens here, once, at the
// single initialization entry point; unknown names come back with the
// closest known driver as a suggestion.
func Lookup(name string) (Driver, error) {
	driver, ok := drivers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Driver{}, fmt.Errorf(
			"%w: %q (did you mean %q?)",
			ErrUnsupportedDriver, name, closestDriver(name),
		)
	}
	return driver, nil
}

func closestDriver(name string) string {
	best := ""
	bestDistance := -1
	for candidate := range drivers {
		d := matchr.Levenshtein(strings.ToLower(name), candidate)
		if bestDistance == -1 || d < bestDistance {
			best = candidate
			bestDistance = d
		}
	}
	return best
}
