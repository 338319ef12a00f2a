package main

import (
	"github.com/horgh/irc"
)

// maxLineLength is the maximum protocol message length including the
// trailing CRLF. See RFC 1459 section 2.3.
const maxLineLength = irc.MaxLineLength

// parseMessage tokenizes a single line (without its terminator) into an IRC
// message, delegating the actual decoding to irc.ParseMessage. A leading
// ":<prefix>" on the line, which a well behaved client should not send, is
// parsed along with everything else but then discarded: we never trust a
// prefix a client supplies.
func parseMessage(line string) (irc.Message, error) {
	m, err := irc.ParseMessage(line + "\r\n")
	if err != nil && err != irc.ErrTruncated {
		return irc.Message{}, err
	}

	m.Prefix = ""
	return m, nil
}

// encodeMessage formats a message as a wire-ready line terminated by CRLF,
// delegating to (Message).Encode. Per irc.Encode's contract, a message that
// would exceed maxLineLength is truncated and returned along with
// irc.ErrTruncated rather than dropped outright.
func encodeMessage(m irc.Message) (string, error) {
	return m.Encode()
}

// numericMessage builds a numeric reply: ":<server> <code> <nick> <params...>".
// nick is "*" for clients that have not yet picked one, per common ircd
// practice.
func numericMessage(server, code, nick string, params ...string) irc.Message {
	if len(nick) == 0 {
		nick = "*"
	}
	all := append([]string{nick}, params...)
	return irc.Message{
		Prefix:  server,
		Command: code,
		Params:  all,
	}
}

// lineBuffer accumulates raw bytes from a client's socket and splits them
// into complete protocol lines. CRLF is the canonical terminator; a bare LF
// is tolerated. Empty lines are silently skipped, matching RFC 1459's
// tolerance for stray terminators.
type lineBuffer struct {
	buf []byte
}

// feed appends newly read bytes to the buffer.
func (l *lineBuffer) feed(b []byte) {
	l.buf = append(l.buf, b...)
}

// next returns the next complete line (without its terminator) and true, or
// false if the buffer holds no complete line yet. It may be called
// repeatedly to drain every line currently buffered.
func (l *lineBuffer) next() (string, bool) {
	for {
		idx := -1
		for i, c := range l.buf {
			if c == '\n' {
				idx = i
				break
			}
		}
		if idx == -1 {
			return "", false
		}

		end := idx
		if end > 0 && l.buf[end-1] == '\r' {
			end--
		}

		line := string(l.buf[:end])
		l.buf = l.buf[idx+1:]

		if len(line) == 0 {
			continue
		}

		return line, true
	}
}

// len reports the number of unconsumed, unterminated bytes currently
// buffered. Callers use this to enforce the input size cap (spec section 3
// invariant 6).
func (l *lineBuffer) len() int {
	return len(l.buf)
}
