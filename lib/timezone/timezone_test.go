package timezone

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNowIsFrenchLocalTime(t *testing.T) {
	now := Now()
	require.Equal(t, Location, now.Location())

	zone, offset := now.Zone()
	require.Contains(t, []string{"CET", "CEST"}, zone)
	require.Contains(t, []int{3600, 7200}, offset)
}
