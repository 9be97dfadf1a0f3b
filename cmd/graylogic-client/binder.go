package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-client/internal/platform"
	"github.com/nerrad567/gray-logic-client/internal/session"
	"github.com/nerrad567/gray-logic-client/internal/subsystem"
)

// placeBindable is a subsystem controller that follows the active place.
type placeBindable interface {
	BindPlace(ctx context.Context, placeID string) error
	Unbind()
}

// sessionDriver is the part of the session controller the binder drives.
type sessionDriver interface {
	Login(ctx context.Context, creds platform.Credentials, desiredPlaceID string, cb session.LoginCallback) error
	Logout(ctx context.Context) error
}

// placeBinder keeps the subsystem controllers bound to the active place and
// reacts to session lifecycle callbacks. It is the login and logout callback
// of the session controller.
//
// Binding does network I/O, so it never runs on the executor. Binds and
// unbinds are serialised and one superseded by a newer change is skipped.
// Nothing new starts once wait has been called.
type placeBinder struct {
	ctx      context.Context
	sessions sessionDriver
	timeout  time.Duration
	logger   subsystem.Logger
	targets  []placeBindable

	mu      sync.Mutex
	creds   platform.Credentials
	desired string

	// genMu guards gen and closed.
	genMu  sync.Mutex
	gen    uint64
	closed bool

	// held for the duration of one bind
	bindMu sync.Mutex
	wg     sync.WaitGroup
}

func newPlaceBinder(ctx context.Context, sessions sessionDriver, timeout time.Duration, logger subsystem.Logger, targets ...placeBindable) *placeBinder {
	return &placeBinder{
		ctx:      ctx,
		sessions: sessions,
		timeout:  timeout,
		logger:   logger,
		targets:  targets,
	}
}

// setLogin stores the credentials used for login and re-login after expiry.
func (b *placeBinder) setLogin(creds platform.Credentials, desiredPlaceID string) {
	b.mu.Lock()
	b.creds = creds
	b.desired = desiredPlaceID
	b.mu.Unlock()
}

// login starts a login with the stored credentials.
func (b *placeBinder) login() error {
	b.mu.Lock()
	creds, desired := b.creds, b.desired
	b.mu.Unlock()

	if err := b.sessions.Login(b.ctx, creds, desired, b); err != nil {
		return fmt.Errorf("logging in as %s: %w", creds.Username, err)
	}
	return nil
}

// OnLoginSuccess binds the subsystems to the resolved place.
func (b *placeBinder) OnLoginSuccess(s *session.Session) {
	b.logger.Info("logged in", "person", s.PersonID, "place", s.PlaceID, "role", s.Role)
	b.bindAsync(s.PlaceID)
}

// OnLoginError logs the failed login; the process stays up for the local API.
func (b *placeBinder) OnLoginError(err error) {
	b.logger.Error("login failed", "error", err)
}

// OnLoggedOut unbinds the subsystems after the session has been torn down,
// which also stops any arming countdown.
func (b *placeBinder) OnLoggedOut() {
	b.logger.Info("logged out")
	b.bindAsync("")
}

// OnSessionExpired logs out and logs in again with the stored credentials.
func (b *placeBinder) OnSessionExpired() {
	b.logger.Warn("session expired, logging in again")
	b.spawn(func() {
		ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
		defer cancel()
		//nolint:errcheck // Logout tears down locally whatever the platform answers
		b.sessions.Logout(ctx)
		if err := b.login(); err != nil {
			b.logger.Error("re-login after expiry failed", "error", err)
		}
	})
}

// bindAsync binds every target to placeID off the calling goroutine. An empty
// placeID unbinds them.
func (b *placeBinder) bindAsync(placeID string) {
	b.genMu.Lock()
	b.gen++
	gen := b.gen
	b.genMu.Unlock()

	started := b.spawn(func() {
		if err := b.bind(gen, placeID); err != nil {
			b.logger.Warn("binding subsystems failed", "place", placeID, "error", err)
		}
	})
	if !started {
		b.logger.Debug("binder stopped, dropping bind", "place", placeID)
	}
}

// spawn runs fn on a tracked goroutine. It reports false, and does nothing,
// once wait has been called.
func (b *placeBinder) spawn(fn func()) bool {
	b.genMu.Lock()
	defer b.genMu.Unlock()
	if b.closed {
		return false
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
	return true
}

// bind binds every target in parallel, or unbinds them all when placeID is
// empty. One failing subsystem does not stop the others from binding.
func (b *placeBinder) bind(gen uint64, placeID string) error {
	b.bindMu.Lock()
	defer b.bindMu.Unlock()

	b.genMu.Lock()
	superseded := gen != b.gen
	b.genMu.Unlock()
	if superseded {
		b.logger.Debug("skipping superseded bind", "place", placeID)
		return nil
	}

	if placeID == "" {
		for _, t := range b.targets {
			t.Unbind()
		}
		b.logger.Info("subsystems unbound")
		return nil
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	var g errgroup.Group
	for _, t := range b.targets {
		g.Go(func() error {
			return t.BindPlace(ctx, placeID)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	b.logger.Info("subsystems bound", "place", placeID)
	return nil
}

// wait stops new background work and blocks until every bind and re-login
// already started has finished.
func (b *placeBinder) wait() {
	b.genMu.Lock()
	b.closed = true
	b.genMu.Unlock()
	b.wg.Wait()
}
