package session

// Phase is a coarse view of the state machine, derived from State rather
// than stored, so it can never disagree with the underlying fields.
type Phase string

const (
	PhaseAnonymous      Phase = "anonymous"
	PhaseAuthenticating Phase = "authenticating"
	PhaseAuthenticated  Phase = "authenticated"
)

// State is the in-memory session: the current user, whether the session is
// considered authenticated, whether a transition is in flight, and the most
// recent transition error (held until explicitly cleared).
type State struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
	Err             string
}

// Phase derives the coarse machine phase.
func (s State) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseAuthenticating
	case s.IsAuthenticated:
		return PhaseAuthenticated
	default:
		return PhaseAnonymous
	}
}

// clone returns a copy safe to hand to subscribers; the user record is
// copied so a listener cannot mutate manager state.
func (s State) clone() State {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}
