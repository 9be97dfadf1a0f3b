package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/gray-logic-client/internal/listener"
	"github.com/nerrad567/gray-logic-client/internal/model"
	"github.com/nerrad567/gray-logic-client/internal/platform"
)

// defaultLoadTimeout bounds the login cache barrier.
const defaultLoadTimeout = 30 * time.Second

// Logger defines the logging interface used by the session package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport is the platform surface the session orchestrator needs.
type Transport interface {
	model.Fetcher
	Requester

	Login(ctx context.Context, creds platform.Credentials) (*platform.LoginResult, error)
	Logout(ctx context.Context) error
	SetActivePlace(ctx context.Context, placeID string) error
	ListAvailablePlaces(ctx context.Context) ([]platform.PlaceDescriptor, error)
	Subscribe(fn func(platform.Message)) listener.Registration
}

// State is the session lifecycle state.
type State int

// Session states.
const (
	StateLoggedOut State = iota
	StateLoggingIn
	StateActive
	StateSwitchingPlace
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateLoggingIn:
		return "logging_in"
	case StateActive:
		return "active"
	case StateSwitchingPlace:
		return "switching_place"
	default:
		return "unknown"
	}
}

// Session is a snapshot of the authenticated identity and active place.
type Session struct {
	Token    string
	PersonID string
	PlaceID  string
	Role     platform.Role

	Place   *model.Model
	Person  *model.Model
	Account *model.Model

	// Places lists every place the person could access at login.
	Places []platform.PlaceDescriptor
}

// LoginCallback receives the outcome of one Login call, on the executor.
// Exactly one of the two methods is called.
type LoginCallback interface {
	OnLoginSuccess(s *Session)
	OnLoginError(err error)
}

// LogoutCallback receives session teardown notifications, on the executor.
type LogoutCallback interface {
	OnLoggedOut()
	// OnSessionExpired is called instead of an automatic logout when the
	// platform ends the session. The consumer decides when to call Logout.
	OnSessionExpired()
}

// Config holds session settings.
type Config struct {
	LoadTimeout time.Duration
}

// Deps holds the collaborators of a Controller.
type Deps struct {
	Transport Transport
	Store     *model.Store
	Executor  listener.Executor
	Logger    Logger
}

// loginAttempt marks the login in flight.
type loginAttempt struct {
	done chan struct{}
}

// Controller owns login, logout and active place switching.
//
// Construct one per process and pass it to consumers. Callbacks and listeners
// are delivered on the executor.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Controller struct {
	cfg       Config
	transport Transport
	store     *model.Store
	exec      listener.Executor
	logger    Logger
	caches    *Caches

	inflight atomic.Pointer[loginAttempt]

	mu      sync.RWMutex
	state   State
	session *Session
	expiry  *time.Timer
	// epoch is bumped whenever the session is dropped. Logins and place
	// switches started under an older epoch must not commit.
	epoch uint64

	logoutCB       *listener.Slot[LogoutCallback]
	stateListeners listener.List[func(State)]
	placeListeners listener.List[func(string)]
	pushReg        listener.Registration
}

// New creates a logged-out controller.
func New(cfg Config, deps Deps) *Controller {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaultLoadTimeout
	}
	if deps.Executor == nil {
		deps.Executor = listener.Inline
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	return &Controller{
		cfg:       cfg,
		transport: deps.Transport,
		store:     deps.Store,
		exec:      deps.Executor,
		logger:    deps.Logger,
		caches:    NewCaches(deps.Store, deps.Transport, deps.Transport),
		logoutCB:  listener.NewSlot[LogoutCallback]("session.logout", deps.Logger),
		pushReg:   listener.Empty,
	}
}

// Start subscribes to out-of-band session events.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushReg.Unregister()
	c.pushReg = c.transport.Subscribe(c.handlePush)
}

// Caches returns the session caches.
func (c *Controller) Caches() *Caches { return c.caches }

// Login authenticates and primes the session caches. It returns
// ErrLoginInProgress if a previous login has not completed; otherwise the
// outcome is delivered to cb.
//
// After authentication the active place is resolved and confirmed, then the
// seven session caches reload in parallel. The first failure is reported
// immediately. If the caches do not all load within the load timeout,
// ErrLoadTimeout is reported; loads still in flight are left to complete and
// may populate the cache afterwards.
func (c *Controller) Login(ctx context.Context, creds platform.Credentials, desiredPlaceID string, cb LoginCallback) error {
	attempt := &loginAttempt{done: make(chan struct{})}
	if !c.inflight.CompareAndSwap(nil, attempt) {
		return ErrLoginInProgress
	}

	c.mu.RLock()
	epoch := c.epoch
	c.mu.RUnlock()

	c.setState(StateLoggingIn)
	go c.runLogin(ctx, attempt, epoch, creds, desiredPlaceID, cb)
	return nil
}

// LoginInProgress reports whether a login has not completed yet.
func (c *Controller) LoginInProgress() bool {
	return c.inflight.Load() != nil
}

func (c *Controller) runLogin(ctx context.Context, attempt *loginAttempt, epoch uint64, creds platform.Credentials, desired string, cb LoginCallback) {
	defer func() {
		c.inflight.CompareAndSwap(attempt, nil)
		close(attempt.done)
	}()

	sess, err := c.login(ctx, creds, desired)
	if err == nil && !c.activate(epoch, sess) {
		err = fmt.Errorf("%w: logged out during login", ErrNotLoggedIn)
	}
	if err != nil {
		c.logger.Warn("login failed", "error", err)
		// A failed re-login leaves no session behind.
		c.dropSession()
		c.setState(StateLoggedOut)
		c.exec.Execute(func() { cb.OnLoginError(err) })
		return
	}
	c.watchExpiry(sess.Token)

	c.logger.Info("session active", "person", sess.PersonID, "place", sess.PlaceID)
	c.exec.Execute(func() { cb.OnLoginSuccess(sess) })
}

func (c *Controller) login(ctx context.Context, creds platform.Credentials, desired string) (*Session, error) {
	res, err := c.transport.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}

	place, err := ResolvePlace(res.Places, desired)
	if err != nil {
		return nil, err
	}
	if place.PlaceID != desired && desired != "" {
		c.logger.Info("requested place unavailable, using fallback", "requested", desired, "place", place.PlaceID)
	}

	if err := c.transport.SetActivePlace(ctx, place.PlaceID); err != nil {
		return nil, fmt.Errorf("activating place %s: %w", place.PlaceID, err)
	}

	c.caches.Bind(place.PlaceID, res.PersonID, place.AccountID)
	if err := c.loadCaches(ctx); err != nil {
		return nil, err
	}

	places := make([]platform.PlaceDescriptor, len(res.Places))
	copy(places, res.Places)
	return &Session{
		Token:    res.Token,
		PersonID: res.PersonID,
		PlaceID:  place.PlaceID,
		Role:     place.Role,
		Place:    c.caches.Place.Get(),
		Person:   c.caches.Person.Get(),
		Account:  c.caches.Account.Get(),
		Places:   places,
	}, nil
}

// loadCaches reloads every session cache in parallel and waits for all of
// them, failing on the first error or when the load timeout expires.
func (c *Controller) loadCaches(ctx context.Context) error {
	loaders := c.caches.loaders()
	results := make(chan error, len(loaders))

	// Loads outlive a timed-out or cancelled wait.
	loadCtx := context.WithoutCancel(ctx)
	for _, l := range loaders {
		go func() {
			if err := l.reload(loadCtx); err != nil {
				results <- fmt.Errorf("%w: %s: %w", ErrCacheLoad, l.name, err)
				return
			}
			results <- nil
		}()
	}

	timer := time.NewTimer(c.cfg.LoadTimeout)
	defer timer.Stop()

	for remaining := len(loaders); remaining > 0; {
		select {
		case err := <-results:
			if err != nil {
				return err
			}
			remaining--
		case <-timer.C:
			return fmt.Errorf("%w after %v", ErrLoadTimeout, c.cfg.LoadTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ResolvePlace picks the place to activate: desired when it is in the list,
// else the first owned place, else the first place.
func ResolvePlace(places []platform.PlaceDescriptor, desired string) (platform.PlaceDescriptor, error) {
	if len(places) == 0 {
		return platform.PlaceDescriptor{}, ErrNoPlaces
	}
	if desired != "" {
		for _, p := range places {
			if p.PlaceID == desired {
				return p, nil
			}
		}
	}
	for _, p := range places {
		if p.IsOwner() {
			return p, nil
		}
	}
	return places[0], nil
}

// ChangeActivePlace switches the session to placeID. Switching to the current
// place is a no-op. After the platform confirms the switch, person, place and
// account reload in that order; the first failure is returned and earlier
// reloads stay cached.
//
// A Logout while the switch is in flight wins: the switch returns an error
// wrapping ErrNotLoggedIn and the controller stays logged out.
func (c *Controller) ChangeActivePlace(ctx context.Context, placeID string) error {
	c.mu.RLock()
	sess, epoch := c.session, c.epoch
	c.mu.RUnlock()

	if sess == nil {
		return ErrNotLoggedIn
	}
	if sess.PlaceID == placeID {
		return nil
	}

	target, err := c.findPlace(ctx, sess, placeID)
	if err != nil {
		return err
	}

	if !c.setStateAt(epoch, StateSwitchingPlace) {
		return errSwitchAborted
	}
	defer c.setStateAt(epoch, StateActive)

	if err := c.transport.SetActivePlace(ctx, placeID); err != nil {
		return fmt.Errorf("activating place %s: %w", placeID, err)
	}
	c.caches.Bind(placeID, sess.PersonID, target.AccountID)

	next := *sess
	next.PlaceID = placeID
	next.Role = target.Role

	stages := []struct {
		name string
		src  *model.Source
		dst  **model.Model
	}{
		{"person", c.caches.Person, &next.Person},
		{"place", c.caches.Place, &next.Place},
		{"account", c.caches.Account, &next.Account},
	}
	for _, stage := range stages {
		m, err := stage.src.Reload(ctx)
		if err != nil {
			if !c.commitSession(epoch, &next) {
				return errSwitchAborted
			}
			return fmt.Errorf("reloading %s: %w", stage.name, err)
		}
		*stage.dst = m
	}

	if !c.commitSession(epoch, &next) {
		return errSwitchAborted
	}
	c.refreshCollections()

	c.logger.Info("active place changed", "place", placeID)
	c.placeListeners.Each(func(fn func(string)) {
		c.exec.Execute(func() {
			if c.currentEpoch() == epoch {
				fn(placeID)
			}
		})
	})
	return nil
}

var errSwitchAborted = fmt.Errorf("%w: logged out while switching place", ErrNotLoggedIn)

// commitSession installs s unless the session was dropped after epoch was
// read. It reports whether s was installed.
func (c *Controller) commitSession(epoch uint64, s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	c.session = s
	return true
}

// activate installs sess and moves to StateActive in one step, unless the
// session was dropped after epoch was read.
func (c *Controller) activate(epoch uint64, sess *Session) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	c.session = sess
	changed := c.state != StateActive
	c.state = StateActive
	c.mu.Unlock()

	if changed {
		c.notifyState(StateActive)
	}
	return true
}

// dropSession forgets the session and invalidates every login and switch in
// flight.
func (c *Controller) dropSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	c.session = nil
	c.epoch++
}

func (c *Controller) currentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// refreshCollections reloads the place-scoped lists in the background.
func (c *Controller) refreshCollections() {
	colls := []*model.Collection{c.caches.Devices, c.caches.Hubs, c.caches.People, c.caches.Products}
	for _, coll := range colls {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.LoadTimeout)
			defer cancel()
			if _, err := coll.Reload(ctx); err != nil {
				c.logger.Warn("collection refresh failed", "namespace", coll.Namespace(), "error", err)
			}
		}()
	}
}

func (c *Controller) findPlace(ctx context.Context, sess *Session, placeID string) (platform.PlaceDescriptor, error) {
	for _, p := range sess.Places {
		if p.PlaceID == placeID {
			return p, nil
		}
	}

	places, err := c.transport.ListAvailablePlaces(ctx)
	if err != nil {
		return platform.PlaceDescriptor{}, fmt.Errorf("listing places: %w", err)
	}
	for _, p := range places {
		if p.PlaceID == placeID {
			return p, nil
		}
	}
	return platform.PlaceDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownPlace, placeID)
}

// Logout ends the platform session and clears every cached model. Local
// teardown happens even when the platform request fails.
func (c *Controller) Logout(ctx context.Context) error {
	err := c.transport.Logout(ctx)
	if err != nil {
		c.logger.Warn("platform logout failed", "error", err)
		err = fmt.Errorf("logging out: %w", err)
	}

	c.teardown()

	if cb, ok := c.logoutCB.Get(); ok {
		c.exec.Execute(cb.OnLoggedOut)
	} else {
		c.logger.Info("logged out", "reason", "no logout callback registered")
	}
	return err
}

func (c *Controller) teardown() {
	c.dropSession()
	c.store.Clear()
	c.setState(StateLoggedOut)
}

// watchExpiry arms a timer at the session token's expiry when the token is a
// JWT. The signature is not checked; the platform remains authoritative.
func (c *Controller) watchExpiry(token string) {
	if token == "" {
		return
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		c.logger.Debug("session token is not a JWT, expiry not tracked")
		return
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expiry != nil {
		c.expiry.Stop()
	}
	c.expiry = time.AfterFunc(max(time.Until(exp.Time), 0), func() {
		c.mu.RLock()
		current := c.session != nil && c.session.Token == token
		c.mu.RUnlock()
		if current {
			c.logger.Info("session token expired", "expires_at", exp.Time)
			c.handleSessionExpired()
		}
	})
}

func (c *Controller) handlePush(msg platform.Message) {
	switch msg.Type {
	case platform.TypeSessionExpired:
		c.handleSessionExpired()
	case platform.TypeActivePlaceCleared:
		go c.handlePlaceCleared()
	}
}

// handleSessionExpired hands the expiry to the logout callback, or logs out.
func (c *Controller) handleSessionExpired() {
	if cb, ok := c.logoutCB.Get(); ok {
		c.exec.Execute(cb.OnSessionExpired)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.LoadTimeout)
		defer cancel()
		c.Logout(ctx) //nolint:errcheck // Logged by Logout; local teardown always happens
	}()
}

// handlePlaceCleared moves the session to another owned place, or logs out.
func (c *Controller) handlePlaceCleared() {
	c.mu.RLock()
	sess := c.session
	c.mu.RUnlock()
	if sess == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.LoadTimeout)
	defer cancel()

	places, err := c.transport.ListAvailablePlaces(ctx)
	if err != nil {
		c.logger.Warn("listing places after place cleared failed, using login list", "error", err)
		places = sess.Places
	}

	for _, p := range places {
		if !p.IsOwner() || p.PlaceID == sess.PlaceID {
			continue
		}
		c.mu.Lock()
		if c.session != nil {
			next := *c.session
			next.Places = places
			c.session = &next
		}
		c.mu.Unlock()

		if err := c.ChangeActivePlace(ctx, p.PlaceID); err != nil {
			c.logger.Warn("switching place after place cleared failed", "place", p.PlaceID, "error", err)
			break
		}
		return
	}

	c.logger.Info("active place cleared and no other owned place, logging out")
	c.Logout(ctx) //nolint:errcheck // Logged by Logout; local teardown always happens
}

// SetLogoutCallback installs the logout callback. A different callback
// replaces the current one with a warning.
func (c *Controller) SetLogoutCallback(cb LogoutCallback) listener.Registration {
	return c.logoutCB.Set(cb)
}

// AddStateListener registers fn for state transitions.
func (c *Controller) AddStateListener(fn func(State)) listener.Registration {
	return c.stateListeners.Add(fn)
}

// AddPlaceListener registers fn for active place changes.
func (c *Controller) AddPlaceListener(fn func(placeID string)) listener.Registration {
	return c.placeListeners.Add(fn)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed {
		c.notifyState(s)
	}
}

// setStateAt moves to s unless the session was dropped after epoch was read.
func (c *Controller) setStateAt(epoch uint64, s State) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed {
		c.notifyState(s)
	}
	return true
}

func (c *Controller) notifyState(s State) {
	c.stateListeners.Each(func(fn func(State)) {
		c.exec.Execute(func() { fn(s) })
	})
}

// Session returns a snapshot of the active session, or nil.
func (c *Controller) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ActivePlace returns the active place id, or "".
func (c *Controller) ActivePlace() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.PlaceID
}

// Close stops event handling and the expiry watcher. It does not log out.
func (c *Controller) Close() {
	c.mu.Lock()
	c.pushReg.Unregister()
	c.pushReg = listener.Empty
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	c.mu.Unlock()
	c.caches.Close()
}
