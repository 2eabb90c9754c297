// Package session owns the identity and state of one simulated portal user:
// a generated credential set, the auth token obtained at login, and the ids
// of every application the user has submitted. All state is private to one
// virtual user; no locking is needed across users.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/example/portal/loadgen/internal/portal"
)

// Errors returned by the session package.
var (
	// ErrNotAuthenticated is returned when an authenticated action is
	// attempted before a successful login.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrNoApplications is returned when an action requires a previously
	// submitted application and none is recorded.
	ErrNoApplications = errors.New("session: no applications recorded")
)

// defaultPassword satisfies the portal's password policy; uniqueness comes
// from the generated email.
const defaultPassword = "LoadTest123!"

// Session is one virtual user's persistent identity across a test run.
type Session struct {
	// ID uniquely identifies the virtual user for logs and reports.
	ID string

	// Profile is the behavior profile name this session runs.
	Profile string

	api   *portal.API
	creds portal.Credentials

	mu             sync.Mutex
	token          string
	applicationIDs []string
}

// New creates a session with a freshly generated credential set.
// The email embeds a random lowercase 8-character suffix so concurrent
// registrations never collide.
func New(api *portal.API, profile string) *Session {
	suffix := randomLowercase(8)
	faker := gofakeit.New(0)

	return &Session{
		ID:      uuid.NewString(),
		Profile: profile,
		api:     api,
		creds: portal.Credentials{
			Email:     fmt.Sprintf("test_%s@example.com", suffix),
			Password:  defaultPassword,
			FirstName: fmt.Sprintf("%s_%s", faker.FirstName(), suffix),
			LastName:  fmt.Sprintf("%s_%s", faker.LastName(), suffix),
		},
	}
}

// Start registers the user and logs in. A registration failure aborts setup
// and a login failure leaves the token unset; in both cases the session
// continues unauthenticated and subsequent authenticated actions are
// reported as skipped. Start itself only returns an error for caller
// convenience; the failure has already been recorded by the portal layer.
func (s *Session) Start(ctx context.Context) error {
	if err := s.api.Register(ctx, s.creds); err != nil {
		return err
	}

	token, err := s.api.Login(ctx, s.creds)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Credentials returns the generated credential set.
func (s *Session) Credentials() portal.Credentials {
	return s.creds
}

// Token returns the auth token, or an empty string before login succeeds.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Authenticated reports whether a login has succeeded.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// RecordApplication appends a submitted application id.
func (s *Session) RecordApplication(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applicationIDs = append(s.applicationIDs, id)
}

// LatestApplication returns the most recently submitted application id.
func (s *Session) LatestApplication() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.applicationIDs) == 0 {
		return "", false
	}
	return s.applicationIDs[len(s.applicationIDs)-1], true
}

// RandomApplication returns a randomly chosen recorded application id.
func (s *Session) RandomApplication() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.applicationIDs)
	if n == 0 {
		return "", false
	}
	if n == 1 {
		return s.applicationIDs[0], true
	}
	return s.applicationIDs[randomInt(n)], true
}

// Applications returns a copy of all recorded application ids in
// submission order.
func (s *Session) Applications() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.applicationIDs...)
}

// ApplicationCount returns the number of recorded applications.
func (s *Session) ApplicationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.applicationIDs)
}

// API returns the portal API this session issues requests through.
func (s *Session) API() *portal.API {
	return s.api
}

const lowercase = "abcdefghijklmnopqrstuvwxyz"

// randomLowercase returns a random lowercase string of length n.
func randomLowercase(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = lowercase[randomInt(len(lowercase))]
	}
	return string(out)
}

// randomInt returns a uniform random int in [0, n).
func randomInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
