package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsValidNickBoundary(t *testing.T) {
	require.True(t, isValidNick(strings.Repeat("a", 9)), "9 chars accepted")
	require.False(t, isValidNick(strings.Repeat("a", 10)), "10 chars rejected")
}

func TestIsValidNickMustStartWithLetter(t *testing.T) {
	require.False(t, isValidNick("1abc"))
	require.True(t, isValidNick("a1bc"))
}

func TestIsValidNickSpecialChars(t *testing.T) {
	require.True(t, isValidNick("a-_[]{}"))
	require.False(t, isValidNick("a b"))
}

func TestIsValidNickEmpty(t *testing.T) {
	require.False(t, isValidNick(""))
}

func TestIsValidChannelBoundary(t *testing.T) {
	require.True(t, isValidChannel("#"+strings.Repeat("a", 49)), "50 bytes accepted")
	require.False(t, isValidChannel("#"+strings.Repeat("a", 50)), "51 bytes rejected")
}

func TestIsValidChannelPrefix(t *testing.T) {
	require.True(t, isValidChannel("#chat"))
	require.True(t, isValidChannel("&local"))
	require.False(t, isValidChannel("chat"))
}

func TestIsValidChannelRejectsSpacesAndCommas(t *testing.T) {
	require.False(t, isValidChannel("#a b"))
	require.False(t, isValidChannel("#a,b"))
}

func TestCanonicalizeIsCaseInsensitive(t *testing.T) {
	require.Equal(t, canonicalizeNick("Alice"), canonicalizeNick("ALICE"))
	require.Equal(t, canonicalizeChannel("#Chat"), canonicalizeChannel("#CHAT"))
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"#a", "#b"}, splitList("#a,#b"))
	require.Nil(t, splitList(""))
}
