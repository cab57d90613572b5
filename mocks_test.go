package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	session "github.com/clubport/go-session"
	goerrors "github.com/goliatone/go-errors"
)

// statusErr builds an HTTP-rejection error the way the gateway classifies
// one: backend message plus the status code in metadata.
func statusErr(t *testing.T, status int, message string) error {
	t.Helper()
	category := goerrors.CategoryValidation
	switch {
	case status == 401:
		category = goerrors.CategoryAuth
	case status >= 500:
		category = goerrors.CategoryInternal
	}
	return goerrors.New(message, category).WithMetadata(map[string]any{"status": status})
}

// stubGateway implements session.AuthGateway with pluggable behavior per
// operation; unset operations succeed with zero values.
type stubGateway struct {
	loginFn     func(ctx context.Context, email, password string) (*session.LoginResponse, error)
	logoutFn    func(ctx context.Context, token string) error
	registerFn  func(ctx context.Context, payload session.RegisterPayload) error
	refreshFn   func(ctx context.Context) (*session.RefreshResponse, error)
	resetReqFn  func(ctx context.Context, email string) error
	resetConfFn func(ctx context.Context, token, newPassword string) error

	mu          sync.Mutex
	loginCalls  int
	logoutCalls int
}

func (g *stubGateway) Login(ctx context.Context, email, password string) (*session.LoginResponse, error) {
	g.mu.Lock()
	g.loginCalls++
	g.mu.Unlock()
	if g.loginFn == nil {
		return &session.LoginResponse{}, nil
	}
	return g.loginFn(ctx, email, password)
}

func (g *stubGateway) Logout(ctx context.Context, token string) error {
	g.mu.Lock()
	g.logoutCalls++
	g.mu.Unlock()
	if g.logoutFn == nil {
		return nil
	}
	return g.logoutFn(ctx, token)
}

func (g *stubGateway) Register(ctx context.Context, payload session.RegisterPayload) error {
	if g.registerFn == nil {
		return nil
	}
	return g.registerFn(ctx, payload)
}

func (g *stubGateway) Refresh(ctx context.Context) (*session.RefreshResponse, error) {
	if g.refreshFn == nil {
		return &session.RefreshResponse{AccessToken: "refreshed"}, nil
	}
	return g.refreshFn(ctx)
}

func (g *stubGateway) RequestPasswordReset(ctx context.Context, email string) error {
	if g.resetReqFn == nil {
		return nil
	}
	return g.resetReqFn(ctx, email)
}

func (g *stubGateway) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if g.resetConfFn == nil {
		return nil
	}
	return g.resetConfFn(ctx, token, newPassword)
}

func (g *stubGateway) LoginCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loginCalls
}

// recordingSink captures activity events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []session.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event session.ActivityEvent) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Types() []session.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// failingSnapshots simulates a broken storage medium.
type failingSnapshots struct {
	loadErr  error
	saveErr  error
	clearErr error
}

func (f *failingSnapshots) Load() (*session.Snapshot, error) { return nil, f.loadErr }
func (f *failingSnapshots) Save(session.Snapshot) error      { return f.saveErr }
func (f *failingSnapshots) Clear() error                     { return f.clearErr }

func activeUser(id int64) *session.User {
	return &session.User{
		ID:        id,
		FirstName: "Amina",
		LastName:  "Diop",
		Email:     "amina@example.com",
		Active:    true,
		Status:    session.UserStatusAllowed,
	}
}

// noSleep makes the login retry backoff instantaneous in tests.
func noSleep(context.Context, time.Duration) error { return nil }
