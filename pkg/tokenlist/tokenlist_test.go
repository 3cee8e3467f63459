package tokenlist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	got := Parse("k1:v1;;k2:v2", nil)
	require.Equal(t, map[string]string{"k1": "v1", "k2": "v2"}, got)
}

func TestParseBlankInputs(t *testing.T) {
	for _, s := range []string{"", ";;", "   "} {
		require.Empty(t, Parse(s, nil), "input %q", s)
	}
}

func TestParseDropsMalformedRecords(t *testing.T) {
	got := Parse("valid:1;;not-a-record;;also:2", nil)
	require.Equal(t, map[string]string{"valid": "1", "also": "2"}, got)
}

func TestParseKeepsFirstSeenDuplicate(t *testing.T) {
	got := Parse("k:first;;k:second", nil)
	require.Equal(t, map[string]string{"k": "first"}, got)
}

func TestParseSet(t *testing.T) {
	got := ParseSet("live1;;live2;; ;;live1")
	require.Len(t, got, 2)
	_, ok1 := got["live1"]
	_, ok2 := got["live2"]
	require.True(t, ok1)
	require.True(t, ok2)
}
