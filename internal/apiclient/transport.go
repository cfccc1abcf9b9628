package apiclient

import (
	"net/http"

	"golang.org/x/oauth2"
)

// Logouter is the part of a session the transport needs.
type Logouter interface {
	Logout()
}

// Transport attaches the session's bearer token to every request and logs the
// session out when the server answers 401.
//
//	request → Transport → oauth2.Transport (adds "Authorization: Bearer …") → Base
//	                ↑
//	      401? → session.Logout() → OnLogout observers tear down per-user state
type Transport struct {
	session Logouter
	inner   *oauth2.Transport
}

// NewTransport wraps base (http.DefaultTransport when nil) with bearer auth
// from source. session is logged out on every 401.
func NewTransport(source oauth2.TokenSource, session Logouter, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		session: session,
		inner:   &oauth2.Transport{Source: source, Base: base},
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		t.session.Logout()
	}
	return resp, nil
}
