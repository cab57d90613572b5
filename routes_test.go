package session_test

import (
	"context"
	"testing"

	session "github.com/clubport/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRouteIntentTable(t *testing.T) {
	authenticated := session.State{User: activeUser(1), IsAuthenticated: true}
	anonymous := session.State{}
	loading := session.State{IsLoading: true}
	staleLoading := session.State{User: activeUser(1), IsAuthenticated: true, IsLoading: true}

	cases := []struct {
		name        string
		state       session.State
		requirement session.PageRequirement
		want        session.RouteIntent
	}{
		{"auth page, authenticated", authenticated, session.RequireAuth, session.IntentAllow},
		{"auth page, anonymous", anonymous, session.RequireAuth, session.IntentRedirectLogin},
		{"auth page, loading", loading, session.RequireAuth, session.IntentPending},
		{"guest page, anonymous", anonymous, session.RequireGuest, session.IntentAllow},
		{"guest page, authenticated", authenticated, session.RequireGuest, session.IntentRedirectDashboard},
		{"guest page, loading", loading, session.RequireGuest, session.IntentPending},
		{"guest page, loading with stale snapshot", staleLoading, session.RequireGuest, session.IntentPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, session.ResolveRouteIntent(tc.state, tc.requirement))
		})
	}
}

func TestRouteGuardRemembersReturnPath(t *testing.T) {
	m, _, _ := newTestManager(&stubGateway{})
	require.NoError(t, m.Reconcile(context.Background()))

	guard := session.NewRouteGuard(m, "/login", "/dashboard")

	decision := guard.Decide(session.RequireAuth, "/events/42")
	assert.Equal(t, session.IntentRedirectLogin, decision.Intent)
	assert.Equal(t, "/login", decision.Target)
	assert.Equal(t, "/events/42", guard.ReturnTo())

	assert.Equal(t, "/events/42", guard.ConsumeReturnTo())
	assert.Equal(t, "/dashboard", guard.ConsumeReturnTo(), "consumed path falls back to dashboard")
}

func TestRouteGuardClearsReturnPathOnLogout(t *testing.T) {
	gw := &stubGateway{
		loginFn: func(context.Context, string, string) (*session.LoginResponse, error) {
			return &session.LoginResponse{AccessToken: "tok", User: activeUser(1)}, nil
		},
	}
	m, _, _ := newTestManager(gw)
	require.NoError(t, m.Reconcile(context.Background()))

	guard := session.NewRouteGuard(m, "/login", "/dashboard")
	guard.Decide(session.RequireAuth, "/cells/7")
	require.Equal(t, "/cells/7", guard.ReturnTo())

	_, err := m.Login(context.Background(), "a@x.com", "secret")
	require.NoError(t, err)
	m.Logout(context.Background())

	assert.Equal(t, "/dashboard", guard.ReturnTo(), "logout drops the cached route intent")
}

func TestRouteGuardWatchFlipsOnStateChange(t *testing.T) {
	gw := &stubGateway{
		loginFn: func(context.Context, string, string) (*session.LoginResponse, error) {
			return &session.LoginResponse{AccessToken: "tok", User: activeUser(1)}, nil
		},
	}
	m, _, _ := newTestManager(gw)
	require.NoError(t, m.Reconcile(context.Background()))

	guard := session.NewRouteGuard(m, "/login", "/dashboard")

	var intents []session.RouteIntent
	cancel := guard.Watch(session.RequireAuth, "/docs", func(d session.RouteDecision) {
		intents = append(intents, d.Intent)
	})
	defer cancel()

	require.Equal(t, session.IntentRedirectLogin, intents[0])

	_, err := m.Login(context.Background(), "a@x.com", "secret")
	require.NoError(t, err)

	assert.Contains(t, intents, session.IntentAllow, "in-tab login must flip the guarded page")

	m.Logout(context.Background())
	assert.Equal(t, session.IntentRedirectLogin, intents[len(intents)-1], "in-tab logout must flip it back")
}
