package portal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lapelle-backend/lib/keychain"
	"lapelle-backend/lib/timezone"
)

func TestParseClock(t *testing.T) {
	on := time.Date(2026, time.March, 2, 17, 45, 12, 0, timezone.Location)

	parsed, err := parseClock("08:30", on)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, time.March, 2, 8, 30, 0, 0, timezone.Location), parsed)

	_, err = parseClock("0830", on)
	require.Error(t, err)
	_, err = parseClock("25:00", on)
	require.Error(t, err)
	_, err = parseClock("aa:bb", on)
	require.Error(t, err)
}

func TestParseClockRange(t *testing.T) {
	on := time.Date(2026, time.March, 2, 0, 0, 0, 0, timezone.Location)

	begin, end, err := parseClockRange(" 08:30 -\n10:00 ", on)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, time.March, 2, 8, 30, 0, 0, timezone.Location), begin)
	require.Equal(t, time.Date(2026, time.March, 2, 10, 0, 0, 0, timezone.Location), end)

	_, _, err = parseClockRange("08:30", on)
	require.Error(t, err)
}

func TestWeekdayIndex(t *testing.T) {
	monday := time.Date(2026, time.March, 2, 12, 0, 0, 0, timezone.Location)
	require.Equal(t, 0, weekdayIndex(monday))
	require.Equal(t, 4, weekdayIndex(monday.AddDate(0, 0, 4)))
	require.Equal(t, 6, weekdayIndex(monday.AddDate(0, 0, 6)))
}

func TestNewSessionRequiresCredentials(t *testing.T) {
	_, err := NewSession(nil, keychain.Credentials{}, Options{})
	require.ErrorIs(t, err, ErrMissingCredentials)
}
