package clearinghouse

import "strings"

// NormalizeToken strips surrounding whitespace and a leading "Token "
// scheme prefix (case-insensitive) from an API token. Users frequently
// paste the full Authorization header value; the client always prepends
// the scheme itself, so the stored token must be bare.
func NormalizeToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) >= 6 && strings.EqualFold(token[:6], "token ") {
		token = strings.TrimSpace(token[6:])
	}
	return token
}
