package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	require.Equal(t, "Salle L303", CleanText("  Salle\n\t L303​ "))
	require.Equal(t, "", CleanText(" \n\t "))
}

func TestSplitList(t *testing.T) {
	require.Equal(t,
		[]string{"ESILV-A1", "ESILV-A1-TD02"},
		SplitList(" ESILV-A1 ,, ESILV-A1-TD02\n"),
	)
	require.Empty(t, SplitList("  , "))
}
