package auth

import (
	"regexp"
	"strings"
)

const (
	// HeaderToken carries the session token, one value per request.
	HeaderToken = "X-WMFO-Auth"
	// HeaderAPIKey carries an application key for the optional fallback path.
	HeaderAPIKey = "X-WMFO-API"
)

var hexRun = regexp.MustCompile(`[a-f0-9]+`)

// ExtractToken pulls the wire token out of a raw header value.
//
// Strict mode requires the trimmed value to be exactly one lowercase hex string.
// Legacy mode takes the last hex run anywhere in the value, which older clients
// relied on when several cookie-like values were concatenated.
func ExtractToken(raw string, legacy bool) (string, bool) {
	if legacy {
		matches := hexRun.FindAllString(raw, -1)
		if len(matches) == 0 {
			return "", false
		}
		return matches[len(matches)-1], true
	}

	v := strings.TrimSpace(raw)
	if v == "" || !isLowerHex(v) {
		return "", false
	}
	return v, true
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
