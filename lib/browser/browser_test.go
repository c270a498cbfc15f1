package browser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	driver, err := Lookup("chrome")
	require.NoError(t, err)
	require.Equal(t, "chrome", driver.Name)
	require.NotEmpty(t, driver.UserAgent)

	// case and whitespace are forgiven
	driver, err = Lookup("  Firefox ")
	require.NoError(t, err)
	require.Equal(t, "firefox", driver.Name)
}

func TestLookupUnsupported(t *testing.T) {
	_, err := Lookup("chorme")
	require.ErrorIs(t, err, ErrUnsupportedDriver)
	// typo should suggest the real driver
	require.Contains(t, err.Error(), `"chrome"`)
}

func TestSupportedDrivers(t *testing.T) {
	names := SupportedDrivers()
	require.Contains(t, names, "chrome")
	require.Contains(t, names, "firefox")
	require.IsIncreasing(t, names)
}
