package http

import (
	"net/http"
	"strings"

	"feeledger/internal/core"
)

// Principal headers set by the authenticating proxy in front of the API.
const (
	HeaderOrganizationID = "X-Organization-ID"
	HeaderUserID         = "X-User-ID"
)

// principalFrom reads the caller from the request headers.
func principalFrom(r *http.Request) core.Principal {
	return core.Principal{
		OrganizationID: sanitizeInput(r.Header.Get(HeaderOrganizationID)),
		UserID:         sanitizeInput(r.Header.Get(HeaderUserID)),
	}
}

// requirePrincipal rejects requests without a resolved organization and user.
func requirePrincipal(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := principalFrom(r).Validate(); err != nil {
			UnauthorizedError(err.Error()).Write(w)
			return
		}
		next(w, r)
	}
}

// rateLimitKey limits per organization, falling back to the client address.
func rateLimitKey(extractIP func(*http.Request) string) func(*http.Request) string {
	return func(r *http.Request) string {
		if org := principalFrom(r).OrganizationID; org != "" {
			return "org:" + org
		}
		return "ip:" + extractIP(r)
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
