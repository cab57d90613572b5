package session

import (
	"context"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const defaultRetryBackoff = time.Second

// Manager is the session state machine. It is the sole writer of the
// TokenStore and SnapshotStore; everything else observes State through
// State() or Subscribe().
//
// Manager is safe for concurrent use, but duplicate-submission suppression
// is a caller obligation: forms should disable their triggers while
// State().IsLoading is true.
type Manager struct {
	mu        sync.Mutex
	state     State
	epoch     uint64
	gateway   AuthGateway
	tokens    TokenStore
	snapshots SnapshotStore

	logger       Logger
	sink         ActivitySink
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	retryBackoff time.Duration

	listeners    map[int]func(State)
	nextListener int
}

// ManagerOption customizes Manager construction.
type ManagerOption func(*Manager)

// WithLogger overrides the default logger.
func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish session events.
func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(m *Manager) {
		m.sink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithRetryBackoff sets the pause before the single login retry.
func WithRetryBackoff(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d >= 0 {
			m.retryBackoff = d
		}
	}
}

// WithSleeper overrides how the retry backoff waits (test seam).
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) ManagerOption {
	return func(m *Manager) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// NewManager returns a Manager in the cold-start state: anonymous with
// IsLoading=true until the first Reconcile settles it.
func NewManager(gateway AuthGateway, tokens TokenStore, snapshots SnapshotStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		state:        State{IsLoading: true},
		gateway:      gateway,
		tokens:       tokens,
		snapshots:    snapshots,
		logger:       defLogger{},
		sink:         noopActivitySink{},
		now:          time.Now,
		sleep:        sleepContext,
		retryBackoff: defaultRetryBackoff,
		listeners:    map[int]func(State){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State returns a copy of the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Subscribe registers a listener invoked after every state change. The
// returned function cancels the subscription.
func (m *Manager) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// mutate applies fn to the state under lock and notifies subscribers with a
// copy outside the lock.
func (m *Manager) mutate(fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	state, listeners := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(state, listeners)
}

func (m *Manager) snapshotLocked() (State, []func(State)) {
	listeners := make([]func(State), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	return m.state.clone(), listeners
}

func (m *Manager) notify(state State, listeners []func(State)) {
	for _, l := range listeners {
		l(state)
	}
}

// Login drives the full sign-in transition. Email and password are expected
// non-empty; format validation is the form's responsibility.
//
// Activation and status checks run BEFORE the token is stored, so a backend
// that hands out tokens for deactivated accounts still never authenticates
// one here. Connectivity failures are retried exactly once after the
// configured backoff; HTTP rejections are never retried.
func (m *Manager) Login(ctx context.Context, email, password string) (*User, error) {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	m.mutate(func(s *State) {
		s.IsLoading = true
		s.Err = ""
	})

	resp, err := m.gateway.Login(ctx, email, password)
	if err != nil && IsConnectivityError(err) {
		if serr := m.sleep(ctx, m.retryBackoff); serr == nil {
			resp, err = m.gateway.Login(ctx, email, password)
		}
	}

	if err == nil && (resp == nil || resp.AccessToken == "" || resp.User == nil) {
		err = ErrInvalidCredentials
	}

	if err != nil {
		return nil, m.failLogin(ctx, email, err)
	}

	user := *resp.User

	if !user.Active {
		return nil, m.failLogin(ctx, email, ErrAccountDeactivated)
	}
	if !statusPermitsLogin(user.Status) {
		return nil, m.failLogin(ctx, email, ErrAccessRestricted.WithMetadata(map[string]any{
			"status": user.Status,
		}))
	}

	m.mu.Lock()
	if m.epoch != epoch {
		// A logout won the race; do not re-authenticate with a stale success.
		m.mu.Unlock()
		m.mutate(func(s *State) { s.IsLoading = false })
		return nil, ErrSessionSuperseded
	}
	// Token write and state swap stay in one critical section so a logout
	// can never observe one without the other.
	m.tokens.Set(resp.AccessToken)
	m.state = State{User: &user, IsAuthenticated: true}
	state, listeners := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(state, listeners)
	m.persistSnapshot()

	m.emit(ctx, ActivityEventLoginSuccess, user.ID, map[string]any{"email": email})
	return &user, nil
}

// failLogin records the failed transition: loading cleared, error text
// surfaced per the taxonomy, authentication state untouched.
func (m *Manager) failLogin(ctx context.Context, email string, err error) error {
	msg := loginErrorMessage(err)

	m.mutate(func(s *State) {
		s.IsLoading = false
		s.Err = msg
	})

	m.logger.Warn("login failed: %v", err)
	m.emit(ctx, ActivityEventLoginFailure, 0, map[string]any{
		"email": email,
		"error": err.Error(),
	})
	return err
}

func loginErrorMessage(err error) string {
	switch {
	case IsConnectivityError(err):
		return ErrConnectivity.Message
	case IsAccountStateError(err):
		return userMessage(err, ErrAccessRestricted.Message)
	default:
		return userMessage(err, ErrInvalidCredentials.Message)
	}
}

// Register submits the multipart registration form. Success does not
// authenticate: new accounts may need approval before first sign-in.
func (m *Manager) Register(ctx context.Context, payload RegisterPayload) error {
	if err := payload.Validate(); err != nil {
		verr := goerrors.Wrap(err, goerrors.CategoryValidation, "registration payload is invalid").
			WithTextCode(textCodeValidation)
		m.mutate(func(s *State) { s.Err = err.Error() })
		return verr
	}

	m.mutate(func(s *State) {
		s.IsLoading = true
		s.Err = ""
	})

	err := m.gateway.Register(ctx, payload)
	if err != nil {
		msg := "Registration failed. Please try again."
		if IsConnectivityError(err) {
			msg = "Server unreachable. Please try again later."
		} else {
			msg = userMessage(err, msg)
		}
		m.mutate(func(s *State) {
			s.IsLoading = false
			s.Err = msg
		})
		m.logger.Warn("registration failed: %v", err)
		return err
	}

	m.mutate(func(s *State) {
		s.IsLoading = false
		s.Err = ""
	})
	m.emit(ctx, ActivityEventRegistered, 0, map[string]any{"email": payload.Email})
	return nil
}

// LogoutResult reports the backend outcome of a logout. Warning is empty on
// a clean server-side invalidation; otherwise it carries the non-blocking
// text to surface. Local teardown has already happened in every case.
type LogoutResult struct {
	Warning string
}

// Logout tears the session down unconditionally: user cleared, token
// removed, snapshot evicted, epoch bumped so in-flight logins cannot
// re-authenticate. The backend call happens after local teardown and only
// shapes the warning, never the transition.
func (m *Manager) Logout(ctx context.Context) LogoutResult {
	m.mu.Lock()
	m.epoch++
	userID := int64(0)
	if m.state.User != nil {
		userID = m.state.User.ID
	}
	token := m.tokens.Get()
	m.tokens.Remove()
	m.state = State{}
	state, listeners := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(state, listeners)

	if err := m.snapshots.Clear(); err != nil {
		m.logger.Warn("snapshot clear failed during logout: %v", err)
	}

	warning := ""
	if err := m.gateway.Logout(ctx, token); err != nil {
		warning = logoutWarning(err)
		m.logger.Info("logout completed locally: %v", err)
	}

	m.emit(ctx, ActivityEventLogout, userID, map[string]any{"warning": warning})
	return LogoutResult{Warning: warning}
}

func logoutWarning(err error) string {
	status, ok := HTTPStatus(err)
	switch {
	case ok && status == 401:
		// The server already considers the session gone; the user's intent
		// to leave is still honored.
		return "Your session had already expired."
	case ok && status >= 500:
		return "Logged out locally; the server reported an error."
	default:
		return "Logout completed locally."
	}
}

// Reconcile settles the cold-start state from the TokenStore and
// SnapshotStore. It is idempotent and always ends with IsLoading=false;
// guards block on that flag to avoid a flash of the wrong view.
//
// Decision table: token+snapshot => authenticated (optimistic trust, no
// forced round-trip); snapshot without token => anonymous with the stale
// snapshot evicted; token without snapshot => anonymous (a bare token is
// not enough to seed the UI); neither => anonymous.
func (m *Manager) Reconcile(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = m.reconcileFailSafe(r)
		}
	}()

	token := m.tokens.Get()
	snap, loadErr := m.snapshots.Load()
	if loadErr != nil {
		return m.reconcileFailSafe(loadErr)
	}

	evict := false
	switch {
	case token != "" && snap != nil && snap.User != nil:
		user := snapshotUser(*snap.User)
		m.mutate(func(s *State) {
			*s = State{User: &user, IsAuthenticated: true}
		})
	case token == "" && snap != nil && snap.User != nil:
		evict = true
		m.mutate(func(s *State) { *s = State{} })
	default:
		m.mutate(func(s *State) { *s = State{} })
	}

	if evict {
		if cerr := m.snapshots.Clear(); cerr != nil {
			m.logger.Warn("stale snapshot eviction failed: %v", cerr)
		}
		m.emit(ctx, ActivityEventSnapshotEvicted, 0, nil)
	}

	state := m.State()
	meta := map[string]any{"authenticated": state.IsAuthenticated}
	userID := int64(0)
	if state.User != nil {
		userID = state.User.ID
	}
	m.emit(ctx, ActivityEventReconciled, userID, meta)
	return nil
}

// reconcileFailSafe keeps a previously-trusted authenticated session alive
// when the token still exists (a transient read error must not log the user
// out); otherwise it clears everything to a consistent anonymous state.
func (m *Manager) reconcileFailSafe(cause any) error {
	token := safeTokenGet(m.tokens)

	m.mu.Lock()
	trusted := token != "" && m.state.IsAuthenticated && m.state.User != nil
	m.mu.Unlock()

	if trusted {
		m.mutate(func(s *State) { s.IsLoading = false })
	} else {
		m.tokens.Remove()
		if cerr := m.snapshots.Clear(); cerr != nil {
			m.logger.Warn("snapshot clear failed during fail-safe: %v", cerr)
		}
		m.mutate(func(s *State) { *s = State{} })
	}

	m.logger.Error("reconciliation failed safe: %v", cause)
	if err, ok := cause.(error); ok {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "session reconciliation failed")
	}
	return goerrors.New("session reconciliation failed", goerrors.CategoryInternal)
}

func safeTokenGet(tokens TokenStore) (token string) {
	defer func() {
		if recover() != nil {
			token = ""
		}
	}()
	return tokens.Get()
}

// ClearError drops the surfaced error without touching any other field,
// typically when the user starts editing a form after a failed attempt.
func (m *Manager) ClearError() {
	m.mutate(func(s *State) { s.Err = "" })
}

// MergeProfile merges non-zero fields of patch into the current user record
// without touching the token or IsAuthenticated, then re-persists the
// snapshot projection. No-op while anonymous.
func (m *Manager) MergeProfile(patch User) {
	changed := false
	m.mutate(func(s *State) {
		if s.User == nil {
			return
		}
		mergeUser(s.User, patch)
		changed = true
	})
	if changed {
		m.persistSnapshot()
	}
}

func mergeUser(dst *User, patch User) {
	if patch.FirstName != "" {
		dst.FirstName = patch.FirstName
	}
	if patch.LastName != "" {
		dst.LastName = patch.LastName
	}
	if patch.Email != "" {
		dst.Email = patch.Email
	}
	if patch.Phone != "" {
		dst.Phone = patch.Phone
	}
	if patch.Gender != "" {
		dst.Gender = patch.Gender
	}
	if patch.Level != "" {
		dst.Level = patch.Level
	}
	if patch.Specialty != "" {
		dst.Specialty = patch.Specialty
	}
	if patch.ProfileImageURL != "" {
		dst.ProfileImageURL = patch.ProfileImageURL
	}
}

// Refresh silently replaces the stored access token. On failure the session
// is torn down through Logout, matching the interceptor contract: a refresh
// that cannot mint a token means the session is over.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	resp, err := m.gateway.Refresh(ctx)
	if err == nil && (resp == nil || resp.AccessToken == "") {
		err = goerrors.New("refresh response is missing a token", goerrors.CategoryAuth)
	}

	if err != nil {
		m.emit(ctx, ActivityEventRefreshFailure, 0, map[string]any{"error": err.Error()})
		m.Logout(ctx)
		return err
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return ErrSessionSuperseded
	}
	m.tokens.Set(resp.AccessToken)
	m.mu.Unlock()

	m.emit(ctx, ActivityEventRefreshSuccess, 0, nil)
	return nil
}

// RequestPasswordReset asks the backend to start a reset flow. It never
// touches session state.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid reset email").
			WithTextCode(textCodeValidation)
	}
	return m.gateway.RequestPasswordReset(ctx, email)
}

// ConfirmPasswordReset completes a reset flow with the emailed token.
func (m *Manager) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := validation.Validate(token, validation.Required); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid reset token").
			WithTextCode(textCodeValidation)
	}
	if err := validation.Validate(newPassword, validation.Required, validation.Length(8, 128)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password").
			WithTextCode(textCodeValidation)
	}
	return m.gateway.ConfirmPasswordReset(ctx, token, newPassword)
}

// persistSnapshot writes the allow-list projection of the current state.
func (m *Manager) persistSnapshot() {
	state := m.State()
	if state.User == nil {
		return
	}
	user := snapshotUser(*state.User)
	snap := Snapshot{User: &user, IsAuthenticated: state.IsAuthenticated}
	if err := m.snapshots.Save(snap); err != nil {
		m.logger.Warn("snapshot persist failed: %v", err)
	}
}

func (m *Manager) emit(ctx context.Context, eventType ActivityEventType, userID int64, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	event := ActivityEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: m.now(),
	}

	sink := normalizeActivitySink(m.sink)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}
