package auth

import (
	"net/http"
	"strings"
)

// =============================================================================
// Authorization Header Parsing
// =============================================================================

// ParseBearer extracts the token from a "Bearer <token>" header value.
// The scheme is matched case-insensitively.
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", NewError(KindUnauthorized, "token cannot be empty")
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, BearerScheme) {
		return "", NewError(KindUnauthorized, "invalid token format")
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", NewError(KindUnauthorized, "token cannot be empty")
	}
	return token, nil
}

// TokenFromRequest returns the bearer token of a request.
func TokenFromRequest(r *http.Request) (string, error) {
	return ParseBearer(r.Header.Get(AuthorizationHeader))
}
