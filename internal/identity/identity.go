// Package identity resolves who is casting a vote from an HTTP request.
package identity

import (
	"net"
	"net/http"
	"strings"

	"github.com/abrezinsky/electionvote/internal/models"
)

var originHeaders = []string{"True-Client-IP", "X-Real-IP", "X-Forwarded-For"}

// Origin returns the caller's network origin. Proxy headers win over the
// socket address; for X-Forwarded-For the left-most hop is the client.
func Origin(r *http.Request) string {
	for _, h := range originHeaders {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = v[:i]
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FromRequest resolves the voter identity. A non-blank token yields an
// authenticated identity, anything else falls back to the origin.
func FromRequest(r *http.Request, token string) models.VoterIdentity {
	origin := Origin(r)
	if token = strings.TrimSpace(token); token != "" {
		return models.Authenticated(token, origin)
	}
	return models.Anonymous(origin)
}
