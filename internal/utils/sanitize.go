package utils

import (
	"net"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTitleLength is the longest title kept, in runes.
const MaxTitleLength = 200

// SanitizeTitle removes control characters and collapses whitespace so titles
// are safe in logs and JSON. The result is cut to MaxTitleLength runes.
func SanitizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastSpace := false
	for _, r := range title {
		if r == utf8.RuneError || unicode.IsControl(r) {
			r = ' '
		}
		if unicode.IsSpace(r) {
			if lastSpace {
				continue
			}
			r = ' '
			lastSpace = true
		} else {
			lastSpace = false
		}
		b.WriteRune(r)
	}

	result := strings.TrimSpace(b.String())
	if utf8.RuneCountInString(result) > MaxTitleLength {
		runes := []rune(result)
		result = strings.TrimSpace(string(runes[:MaxTitleLength]))
	}
	return result
}

// ClientIP returns the request's client address. Proxy headers are honored
// only when the immediate peer is a loopback or private address.
func ClientIP(r *http.Request) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}

	peer := net.ParseIP(remote)
	if peer == nil || !(peer.IsLoopback() || peer.IsPrivate()) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP in the chain (the original client)
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return remote
}

// RedactToken masks a bearer-style token such as a share path for logging,
// keeping only enough of it to correlate log lines.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 6 {
		return "***"
	}
	return token[:3] + "..." + token[len(token)-2:]
}
