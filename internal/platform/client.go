package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-client/internal/listener"
	"github.com/nerrad567/gray-logic-client/internal/model"
)

// defaultRequestTimeout bounds a request when the context carries no deadline.
const defaultRequestTimeout = 30 * time.Second

// Logger defines the logging interface used by the platform client.
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

// Link carries encoded frames to the platform.
type Link interface {
	Send(frame []byte) error
	Close() error
}

// Dialer opens a Link. Every inbound frame must be passed to onFrame, in
// arrival order, from a single goroutine.
type Dialer func(ctx context.Context, onFrame func(frame []byte)) (Link, error)

// Client speaks the platform's request/response protocol over a Link.
//
// Responses are matched to requests by correlation id. Every other inbound
// frame is a push and is fanned out to subscribers in arrival order.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	mu          sync.RWMutex
	link        Link
	clientAddr  string
	timeout     time.Duration
	sessionID   string
	personID    string
	activePlace string
	closed      bool
	done        chan struct{}

	pendingMu sync.Mutex
	pending   map[string]chan Message

	subscribers listener.List[func(Message)]
	logger      Logger
}

// NewClient creates a disconnected client.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		clientAddr: "CLNT:app:" + uuid.NewString(),
		timeout:    timeout,
		done:       make(chan struct{}),
		pending:    make(map[string]chan Message),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Connect opens the link.
func (c *Client) Connect(ctx context.Context, dial Dialer) error {
	link, err := dial(ctx, c.HandleFrame)
	if err != nil {
		return fmt.Errorf("connecting to platform: %w", err)
	}

	c.mu.Lock()
	c.link = link
	c.mu.Unlock()

	c.logger.Info("platform link established", "client", c.clientAddr)
	return nil
}

// HandleFrame dispatches one inbound frame.
func (c *Client) HandleFrame(frame []byte) {
	msg, err := DecodeMessage(frame)
	if err != nil {
		c.logger.Warn("dropping platform frame", "error", err)
		return
	}

	if msg.CorrelationID != "" && !msg.IsRequest {
		c.pendingMu.Lock()
		ch, ok := c.pending[msg.CorrelationID]
		delete(c.pending, msg.CorrelationID)
		c.pendingMu.Unlock()

		if ok {
			ch <- msg
			return
		}
		c.logger.Debug("unmatched platform response", "type", msg.Type, "correlation_id", msg.CorrelationID)
		return
	}

	c.subscribers.Each(func(fn func(Message)) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("platform subscriber panic recovered", "type", msg.Type, "panic", r)
			}
		}()
		fn(msg)
	})
}

// Request sends a request to dest and waits for the response attributes.
// A platform Error response is returned as *Error.
func (c *Client) Request(ctx context.Context, dest model.Address, msgType string, attrs map[string]any) (map[string]any, error) {
	c.mu.RLock()
	link, closed, timeout := c.link, c.closed, c.timeout
	c.mu.RUnlock()

	if closed {
		return nil, ErrClientClosed
	}
	if link == nil {
		return nil, ErrNotConnected
	}

	msg := Message{
		Type:          msgType,
		Source:        c.clientAddr,
		Destination:   string(dest),
		CorrelationID: uuid.NewString(),
		IsRequest:     true,
		Attributes:    attrs,
	}
	frame, err := msg.Encode()
	if err != nil {
		return nil, err
	}

	respCh := make(chan Message, 1)
	c.pendingMu.Lock()
	c.pending[msg.CorrelationID] = respCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msg.CorrelationID)
		c.pendingMu.Unlock()
	}()

	if err := link.Send(frame); err != nil {
		return nil, fmt.Errorf("sending %s: %w", msgType, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", msgType, ctx.Err())
	case <-timer.C:
		return nil, fmt.Errorf("%s to %s: %w", msgType, dest, ErrRequestTimeout)
	case <-c.done:
		return nil, ErrClientClosed
	case resp := <-respCh:
		if resp.Type == TypeError {
			return nil, errorFromAttributes(resp.Attributes)
		}
		if resp.Attributes == nil {
			return map[string]any{}, nil
		}
		return resp.Attributes, nil
	}
}

// GetAttributes fetches the attributes of one model.
func (c *Client) GetAttributes(ctx context.Context, addr model.Address) (map[string]any, error) {
	return c.Request(ctx, addr, TypeGetAttributes, nil)
}

// Login authenticates and records the session identity.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	resp, err := c.Request(ctx, SessionService, TypeLogin, map[string]any{
		"username": creds.Username,
		"password": creds.Password,
	})
	if err != nil {
		return nil, err
	}

	places, err := decodePlaces(resp["places"])
	if err != nil {
		return nil, err
	}
	res := &LoginResult{Places: places}
	res.Token, _ = resp["token"].(string)
	res.PersonID, _ = resp["personId"].(string)

	c.mu.Lock()
	c.sessionID = res.Token
	c.personID = res.PersonID
	c.activePlace = ""
	c.mu.Unlock()

	return res, nil
}

// Logout ends the platform session. Local session identity is dropped even
// when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Request(ctx, SessionService, TypeLogout, nil)

	c.mu.Lock()
	c.sessionID = ""
	c.personID = ""
	c.activePlace = ""
	c.mu.Unlock()

	return err
}

// SetActivePlace selects the place subsequent requests are scoped to.
func (c *Client) SetActivePlace(ctx context.Context, placeID string) error {
	if _, err := c.Request(ctx, SessionService, TypeSetActivePlace, map[string]any{"placeId": placeID}); err != nil {
		return err
	}
	c.mu.Lock()
	c.activePlace = placeID
	c.mu.Unlock()
	return nil
}

// ListAvailablePlaces lists the places the logged-in person can access.
func (c *Client) ListAvailablePlaces(ctx context.Context) ([]PlaceDescriptor, error) {
	resp, err := c.Request(ctx, SessionService, TypeListAvailablePlaces, nil)
	if err != nil {
		return nil, err
	}
	return decodePlaces(resp["places"])
}

// Subscribe registers fn for every push frame.
func (c *Client) Subscribe(fn func(Message)) listener.Registration {
	return c.subscribers.Add(fn)
}

// SessionID returns the current session token, or "".
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// PersonID returns the logged-in person's id, or "".
func (c *Client) PersonID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.personID
}

// IsConnected reports whether a link is open and the client is not closed.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.link != nil && !c.closed
}

// ActivePlace returns the active place id, or "".
func (c *Client) ActivePlace() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activePlace
}

// Mirror applies model pushes to store: Added payloads are merged, value
// changes are applied to cached models and deletions remove them.
func (c *Client) Mirror(store *model.Store) listener.Registration {
	return c.Subscribe(func(msg Message) {
		switch msg.Type {
		case TypeAdded:
			attrs := make(map[string]any, len(msg.Attributes)+1)
			for k, v := range msg.Attributes {
				attrs[k] = v
			}
			if _, ok := attrs[model.AttrAddress]; !ok {
				attrs[model.AttrAddress] = msg.Source
			}
			if _, err := store.Update(attrs); err != nil {
				c.logger.Warn("dropping added push", "source", msg.Source, "error", err)
			}
		case TypeValueChange:
			store.ApplyChange(model.Address(msg.Source), msg.Attributes)
		case TypeDeleted:
			store.Remove(model.Address(msg.Source))
		}
	})
}

// Close closes the link and fails every pending request.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	link := c.link
	close(c.done)
	c.mu.Unlock()

	c.subscribers.Clear()
	if link == nil {
		return nil
	}
	if err := link.Close(); err != nil {
		return fmt.Errorf("closing platform link: %w", err)
	}
	return nil
}
