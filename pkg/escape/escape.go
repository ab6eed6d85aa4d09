// Package escape reverses the escaping a chat producer applies to streamed
// text so that it survives the line-oriented SSE framing.
//
// The producer writes a newline as the two characters `\n`, a colon as `\:`
// and may send spaces as the HTML entity `&nbsp;`. A backslash and an
// ampersand that would otherwise start one of those markers are themselves
// escaped as `\\` and `\&`.
package escape

import (
	"fmt"
	"strings"
)

// NewlineMode selects what an escaped newline turns into.
type NewlineMode int

const (
	// NewlineLiteral produces a "\n" character. This is the canonical
	// representation; markup concerns belong to the renderer.
	NewlineLiteral NewlineMode = iota

	// NewlineHTML produces an HTML line break for callers that inject the
	// text directly into HTML.
	NewlineHTML
)

// HTMLBreak is the markup NewlineHTML emits for an escaped newline.
const HTMLBreak = "<br/>"

const nbsp = "&nbsp;"

// ParseNewlineMode maps a configuration value ("literal" or "html") to a
// NewlineMode.
func ParseNewlineMode(s string) (NewlineMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "literal":
		return NewlineLiteral, nil
	case "html":
		return NewlineHTML, nil
	default:
		return NewlineLiteral, fmt.Errorf("unknown newline mode: %q (available: literal, html)", s)
	}
}

func (m NewlineMode) String() string {
	if m == NewlineHTML {
		return "html"
	}
	return "literal"
}

// Unescape recovers the literal text of a producer payload.
//
// It is a single left-to-right scan, so the output of one replacement is
// never re-read as the input of another and text without escape markers is
// returned unchanged.
func Unescape(s string, mode NewlineMode) string {
	if !strings.ContainsAny(s, `\&`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case c == '\\' && i+1 < len(s):
			switch s[i+1] {
			case 'n':
				if mode == NewlineHTML {
					b.WriteString(HTMLBreak)
				} else {
					b.WriteByte('\n')
				}
				i++
				continue
			case ':', '\\', '&':
				b.WriteByte(s[i+1])
				i++
				continue
			}
		case c == '&' && strings.HasPrefix(s[i:], nbsp):
			b.WriteByte(' ')
			i += len(nbsp) - 1
			continue
		}

		b.WriteByte(c)
	}

	return b.String()
}

// Escape applies the producer-side escaping so that Unescape(Escape(x)) == x
// for any text x. Leading and trailing spaces are sent as &nbsp; because SSE
// framing strips the first space after "data:".
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/8)

	lead := len(s) - len(strings.TrimLeft(s, " "))
	trail := len(strings.TrimRight(s, " "))
	if lead == len(s) {
		trail = 0
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\n':
			b.WriteString(`\n`)
		case c == ':':
			b.WriteString(`\:`)
		case c == '\\':
			b.WriteString(`\\`)
		case c == '&' && strings.HasPrefix(s[i:], nbsp):
			b.WriteString(`\&`)
		case c == ' ' && (i < lead || i >= trail):
			b.WriteString(nbsp)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}
