// Package encoding provides the value transforms applied to insertion-point
// variables before substitution. Every encoder is a pure string function
// selected by name; an iteration count applies the same encoder repeatedly,
// which is how nested payloads (e.g. double URL encoding) are produced.
package encoding

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEncoding is returned when an encoding name is not in the fixed set.
var ErrUnknownEncoding = errors.New("unknown encoding")

// Func is a pure string transform.
type Func func(string) string

var encoders = map[string]Func{
	"url":        URLEncode,
	"double_url": DoubleURLEncode,
	"html":       HTMLEncode,
	"xml":        XMLEncode,
	"unicode":    UnicodeEscape,
	"hex":        HexEscape,
	"octal":      OctalEscape,
	"base64":     Base64Encode,
	"sql_char":   SQLCharEncode,
	"js_escape":  JSEscape,
	"css_escape": CSSEscape,
}

// Names returns the supported encoding names in no particular order.
func Names() []string {
	names := make([]string, 0, len(encoders))
	for name := range encoders {
		names = append(names, name)
	}
	return names
}

// Validate checks that name selects a known encoder.
func Validate(name string) error {
	if _, ok := encoders[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return nil
}

// Apply runs the named encoder over value the given number of times.
// Iteration counts below 1 are treated as 1.
func Apply(name, value string, iterations int) (string, error) {
	fn, ok := encoders[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	if iterations < 1 {
		iterations = 1
	}
	result := value
	for i := 0; i < iterations; i++ {
		result = fn(result)
	}
	return result, nil
}

// URLEncode percent-encodes everything outside the unreserved set, leaving
// path separators alone so full URLs survive a single pass.
func URLEncode(value string) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		if isUnreserved(c) || c == '/' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return c >= 'A' && c <= 'Z' ||
		c >= 'a' && c <= 'z' ||
		c >= '0' && c <= '9' ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

// DoubleURLEncode applies URL encoding twice.
func DoubleURLEncode(value string) string {
	return URLEncode(URLEncode(value))
}

// HTMLEncode escapes the five HTML-significant characters.
func HTMLEncode(value string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#x27;",
	)
	return r.Replace(value)
}

// XMLEncode escapes the XML special characters, including both quote forms.
func XMLEncode(value string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(value)
}

// UnicodeEscape replaces non-ASCII runes with \uXXXX sequences.
func UnicodeEscape(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r > 127 {
			fmt.Fprintf(&b, `\u%04x`, r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HexEscape replaces every rune with a \xNN sequence.
func HexEscape(value string) string {
	var b strings.Builder
	for _, r := range value {
		fmt.Fprintf(&b, `\x%02x`, r)
	}
	return b.String()
}

// OctalEscape replaces every rune with a \NNN octal sequence.
func OctalEscape(value string) string {
	var b strings.Builder
	for _, r := range value {
		fmt.Fprintf(&b, `\%03o`, r)
	}
	return b.String()
}

// Base64Encode applies standard base64 encoding.
func Base64Encode(value string) string {
	return base64.StdEncoding.EncodeToString([]byte(value))
}

// SQLCharEncode rewrites the value as a SQL CHAR() expression.
func SQLCharEncode(value string) string {
	var codes []string
	for _, r := range value {
		codes = append(codes, fmt.Sprintf("%d", r))
	}
	return "CHAR(" + strings.Join(codes, ",") + ")"
}

// JSEscape escapes a string for inclusion in a JavaScript literal. Quote
// characters and backslashes get a backslash prefix, control and non-ASCII
// runes become \uXXXX.
func JSEscape(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\\', '"', '\'':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			if r < 32 || r > 126 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// CSSEscape escapes non-printable runes as CSS hex escapes. The trailing
// space terminates the escape sequence per the CSS grammar.
func CSSEscape(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r < 32 || r > 126 {
			fmt.Fprintf(&b, `\%x `, r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
