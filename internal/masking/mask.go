// Package masking keeps PII and secret-bearing strings out of logs and
// batch results. Recipients are reduced to a last-4 hint, provider errors
// are truncated and stripped of long digit runs.
package masking

import (
	"regexp"
	"strings"
)

// maxErrorLen bounds sanitized error strings carried in results and logs.
const maxErrorLen = 200

var digitRunRe = regexp.MustCompile(`\d{7,}`)

// Recipient masks a send target. Phone-like values (seven or more digits)
// keep their last four digits; anything else is an opaque platform handle
// and is fully redacted.
func Recipient(v string) string {
	if v == "" {
		return ""
	}
	var digits strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) >= 7 {
		return "***" + d[len(d)-4:]
	}
	return "***"
}

// Sanitize bounds a raw provider or handler error string: long digit runs
// (tokens, phone numbers, ids) become "***" and the result is cut at 200
// characters.
func Sanitize(s string) string {
	s = digitRunRe.ReplaceAllString(s, "***")
	if len(s) > maxErrorLen {
		return s[:maxErrorLen]
	}
	return s
}

// Error is Sanitize over an error value; nil yields the empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Sanitize(err.Error())
}
