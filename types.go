package session

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// TokenStore wraps the persisted bearer access token. Reads are synchronous
// and local so unrelated API wrappers can attach Authorization headers
// without a round-trip. The Manager is the sole writer.
type TokenStore interface {
	Get() string
	Set(token string)
	Remove()
}

// SnapshotStore persists the non-secret session snapshot between process
// restarts, under a separate key from the token.
type SnapshotStore interface {
	Load() (*Snapshot, error)
	Save(snap Snapshot) error
	Clear() error
}

// AuthGateway is the set of network operations the Manager invokes. It owns
// no state beyond forwarding HTTP calls and classifying responses.
type AuthGateway interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Logout(ctx context.Context, token string) error
	Register(ctx context.Context, payload RegisterPayload) error
	Refresh(ctx context.Context) (*RefreshResponse, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

// LoginResponse is the gateway's successful login shape.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	User        *User  `json:"user"`
}

// RefreshResponse carries the replacement access token.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
