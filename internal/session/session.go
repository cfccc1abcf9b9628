// Package session holds the client's current identity and bearer token.
//
// Session is an oauth2.TokenSource, so it plugs straight into
// oauth2.Transport: every outgoing request picks up whatever token is current
// at the moment it is sent. Logging out (explicitly, or because the server
// answered 401) notifies observers so per-user state can be torn down.
package session

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoSession is returned by Token when nobody is logged in.
var ErrNoSession = errors.New("session: not logged in")

var _ oauth2.TokenSource = (*Session)(nil)

// Session is safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	identity string
	token    string
	expiry   time.Time

	onLogin  []func(identity string)
	onLogout []func(identity string)
}

// New returns a logged-out Session.
func New() *Session {
	return &Session{}
}

// Login makes identity the current user. If someone else was logged in they
// are logged out first, so logout observers see every identity switch.
func (s *Session) Login(identity, token string, expiry time.Time) {
	s.mu.Lock()
	prev := s.identity
	s.identity = identity
	s.token = token
	s.expiry = expiry
	login := append([]func(string){}, s.onLogin...)
	logout := append([]func(string){}, s.onLogout...)
	s.mu.Unlock()

	if prev != "" && prev != identity {
		for _, fn := range logout {
			fn(prev)
		}
	}
	for _, fn := range login {
		fn(identity)
	}
}

// Logout forgets the current user. Calling it while logged out does nothing.
func (s *Session) Logout() {
	s.mu.Lock()
	prev := s.identity
	s.identity, s.token, s.expiry = "", "", time.Time{}
	logout := append([]func(string){}, s.onLogout...)
	s.mu.Unlock()

	if prev == "" {
		return
	}
	for _, fn := range logout {
		fn(prev)
	}
}

// Identity returns the logged-in identity, or "".
func (s *Session) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// OnLogin registers fn to run after each login. Observers run outside the
// session lock and may call back into the Session.
func (s *Session) OnLogin(fn func(identity string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogin = append(s.onLogin, fn)
}

// OnLogout registers fn to run after each logout with the identity that was
// logged out.
func (s *Session) OnLogout(fn func(identity string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return nil, ErrNoSession
	}
	return &oauth2.Token{
		AccessToken: s.token,
		TokenType:   "Bearer",
		Expiry:      s.expiry,
	}, nil
}
