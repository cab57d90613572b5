package session

import "sync"

// PageRequirement declares what a page demands from the session.
type PageRequirement string

const (
	// RequireAuth marks pages only an authenticated member may see.
	RequireAuth PageRequirement = "requires-auth"
	// RequireGuest marks pages only an anonymous visitor may see (login,
	// registration).
	RequireGuest PageRequirement = "requires-guest"
)

// RouteIntent is the decision a guarded page acts on.
type RouteIntent string

const (
	// IntentPending defers the decision while the session is still loading;
	// render a spinner, never redirect yet.
	IntentPending RouteIntent = "pending"
	// IntentAllow renders the page.
	IntentAllow RouteIntent = "allow"
	// IntentRedirectLogin sends the visitor to the login page.
	IntentRedirectLogin RouteIntent = "redirect-to-login"
	// IntentRedirectDashboard sends the member to the dashboard.
	IntentRedirectDashboard RouteIntent = "redirect-to-dashboard"
)

// ResolveRouteIntent is a pure function of session state and the page
// requirement. While IsLoading is true the answer is always pending, which
// is what prevents a redirect flicker before reconciliation completes --
// even when a stale snapshot would otherwise imply authentication.
func ResolveRouteIntent(state State, requirement PageRequirement) RouteIntent {
	if state.IsLoading {
		return IntentPending
	}

	switch requirement {
	case RequireGuest:
		if state.IsAuthenticated {
			return IntentRedirectDashboard
		}
		return IntentAllow
	default: // RequireAuth
		if state.IsAuthenticated {
			return IntentAllow
		}
		return IntentRedirectLogin
	}
}

// RouteDecision pairs an intent with the navigation target guards should
// use when redirecting.
type RouteDecision struct {
	Intent   RouteIntent
	Target   string
	ReturnTo string
}

// RouteGuard binds a Manager to concrete login/dashboard targets and keeps
// the remembered return path for post-login navigation. The remembered path
// is cleared whenever the session drops to anonymous.
type RouteGuard struct {
	mu               sync.Mutex
	manager          *Manager
	loginPath        string
	dashboardPath    string
	returnTo         string
	wasAuthenticated bool
}

// NewRouteGuard wires a guard to the manager. The guard subscribes so the
// return-path cache is dropped the moment a logout lands.
func NewRouteGuard(manager *Manager, loginPath, dashboardPath string) *RouteGuard {
	g := &RouteGuard{
		manager:       manager,
		loginPath:     loginPath,
		dashboardPath: dashboardPath,
	}

	manager.Subscribe(func(state State) {
		g.mu.Lock()
		wasAuth := g.wasAuthenticated
		g.wasAuthenticated = state.IsAuthenticated
		if wasAuth && !state.IsAuthenticated && !state.IsLoading {
			// Logout landed; the remembered path belongs to the old session.
			g.returnTo = ""
		}
		g.mu.Unlock()
	})

	return g
}

// Decide resolves the intent for a page, remembering path as the post-login
// return target when the visitor is bounced to login.
func (g *RouteGuard) Decide(requirement PageRequirement, path string) RouteDecision {
	state := g.manager.State()
	intent := ResolveRouteIntent(state, requirement)

	decision := RouteDecision{Intent: intent}
	switch intent {
	case IntentRedirectLogin:
		g.mu.Lock()
		g.returnTo = path
		g.mu.Unlock()
		decision.Target = g.loginPath
	case IntentRedirectDashboard:
		decision.Target = g.dashboardPath
	}
	decision.ReturnTo = g.ReturnTo()
	return decision
}

// ReturnTo reports the remembered post-login path, falling back to the
// dashboard.
func (g *RouteGuard) ReturnTo() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.returnTo == "" {
		return g.dashboardPath
	}
	return g.returnTo
}

// ConsumeReturnTo returns the remembered path and clears it, for use right
// after a successful login.
func (g *RouteGuard) ConsumeReturnTo() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	path := g.returnTo
	g.returnTo = ""
	if path == "" {
		return g.dashboardPath
	}
	return path
}

// Watch re-resolves the intent on every session state change so an in-tab
// logout or login immediately flips guarded pages. The returned function
// cancels the subscription.
func (g *RouteGuard) Watch(requirement PageRequirement, path string, fn func(RouteDecision)) func() {
	fn(g.Decide(requirement, path))
	return g.manager.Subscribe(func(State) {
		fn(g.Decide(requirement, path))
	})
}
