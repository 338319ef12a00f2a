package main

import (
	"errors"
	"net"
	"strings"
)

// isClosedError reports whether err is the error net.Listener.Accept
// returns once the listener has been closed, so the accept loop can exit
// quietly during shutdown instead of logging a spurious error.
func isClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// maxNickLength is the maximum nickname length in bytes (RFC 1459 section
// 2.3.1 as narrowed by spec section 6).
const maxNickLength = 9

// maxChannelLength is the maximum channel name length in bytes.
const maxChannelLength = 50

// nickSpecialChars holds the non-alphanumeric characters permitted in a
// nickname after the first.
// The IRC case map folds {|}^ to [\]~; we use the simplified ASCII
// case-insensitive comparison the core allows (spec section 6).
const nickSpecialChars = "-_[]\\`^{|}"

// canonicalizeNick converts a nickname to its lookup key. Comparison is
// plain ASCII case-insensitive, a simplification spec section 6 permits in
// place of the full IRC case map.
func canonicalizeNick(n string) string {
	return strings.ToLower(n)
}

// canonicalizeChannel converts a channel name to its lookup key.
func canonicalizeChannel(c string) string {
	return strings.ToLower(c)
}

// isValidNick reports whether n is 1-9 bytes, starts with a letter, and
// uses only the nickname character set from spec section 6.
func isValidNick(n string) bool {
	if len(n) == 0 || len(n) > maxNickLength {
		return false
	}

	for i, ch := range []byte(n) {
		if isAlpha(byte(ch)) {
			continue
		}
		if i == 0 {
			return false
		}
		if ch >= '0' && ch <= '9' {
			continue
		}
		if strings.IndexByte(nickSpecialChars, byte(ch)) != -1 {
			continue
		}
		return false
	}

	return true
}

// isValidUser reports whether a USER command's username field is
// acceptable. RFC 2812 is lenient here; we disallow whitespace, '@', and
// control bytes, which is enough to keep the username safe to embed in a
// hostmask.
func isValidUser(u string) bool {
	if len(u) == 0 {
		return false
	}
	for i := 0; i < len(u); i++ {
		c := u[i]
		if c <= ' ' || c == '@' || c == 0x7f {
			return false
		}
	}
	return true
}

// isValidChannel reports whether c is 1-50 bytes, starts with '#' or '&',
// and uses only the nickname character set for the remaining characters
// (spec section 6: "remaining characters from the same set used for
// nicknames").
func isValidChannel(c string) bool {
	if len(c) == 0 || len(c) > maxChannelLength {
		return false
	}

	if c[0] != '#' && c[0] != '&' {
		return false
	}

	for i := 1; i < len(c); i++ {
		ch := c[i]
		if isAlpha(ch) || (ch >= '0' && ch <= '9') {
			continue
		}
		if strings.IndexByte(nickSpecialChars, ch) != -1 {
			continue
		}
		return false
	}

	return true
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// splitList splits a comma-separated command argument (the form JOIN and
// PART accept for multiple channels/keys) into its parts. An empty string
// yields an empty slice, not a slice containing one empty element.
func splitList(s string) []string {
	if len(s) == 0 {
		return nil
	}
	return strings.Split(s, ",")
}
