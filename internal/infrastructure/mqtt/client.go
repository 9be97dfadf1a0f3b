package mqtt

import (
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-client/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-client/internal/listener"
)

// Client is the broker connection used by the "mqtt" platform link.
//
// Frames for the platform are published to Topics.PlatformRequests and
// replies and pushes arrive on Topics.ClientInbox. paho reconnects with
// exponential backoff; remembered subscriptions are restored and the
// retained online status republished on every connect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// connected mirrors paho's view, updated from its handlers.
	connected atomic.Bool

	stateListeners listener.List[StateListener]

	logger atomic.Pointer[Logger]
}

// Logger is the logging surface the client needs. *logging.Logger and
// *slog.Logger both satisfy it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// StateListener observes the broker connection. err is set when the
// connection was lost and nil on connect.
type StateListener func(connected bool, err error)

// MessageHandler receives one message. It runs on a paho goroutine and must
// not block. A returned error is logged only.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker described by cfg and waits up to
// defaultConnectTimeout for the first CONNACK. The Last Will is set on the
// client status topic before dialling.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.logWarn("MQTT reconnecting", "client_id", cfg.Broker.ClientID)
	})

	c.client = pahomqtt.NewClient(opts)
	if err := await(c.client.Connect(), ErrConnectionFailed, defaultConnectTimeout); err != nil {
		return nil, err
	}

	// The connect handler runs asynchronously; mark connected now so callers
	// can subscribe straight away.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) handleConnect() {
	c.connected.Store(true)
	c.restoreSubscriptions()
	c.publishStatus(statusOnline, "")
	c.notifyState(true, nil)
}

func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)
	c.notifyState(false, err)
}

// notifyState runs every state listener with panic recovery.
func (c *Client) notifyState(connected bool, err error) {
	c.stateListeners.Each(func(fn StateListener) {
		defer func() {
			if r := recover(); r != nil {
				c.logError("MQTT state listener panic recovered", "panic", r)
			}
		}()
		fn(connected, err)
	})
}

// restoreSubscriptions re-subscribes every remembered topic. Failures are
// left to the next reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for topic, sub := range c.subscriptions {
		c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// publishStatus publishes the retained client status and returns the token.
func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	id := c.cfg.Broker.ClientID
	return c.client.Publish(Topics{}.ClientStatus(id), byte(c.cfg.QoS), true, statusPayload(id, status, reason))
}

// Close publishes a graceful offline status, which the platform tells apart
// from the Last Will, then disconnects and drops every state listener.
// Closing a client that never connected is a no-op.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		c.publishStatus(statusOffline, reasonGraceful).WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)

	c.stateListeners.Clear()
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// ClientID returns the configured MQTT client identifier.
func (c *Client) ClientID() string {
	return c.cfg.Broker.ClientID
}

// AddStateListener registers fn for connection changes. It runs on
// initial connect, on every reconnect and on connection loss, from paho's
// callback goroutines.
func (c *Client) AddStateListener(fn StateListener) listener.Registration {
	return c.stateListeners.Add(fn)
}

// SetLogger sets the logger for handler errors and recovered panics.
// Without one they are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.logger.Store(&logger)
}

func (c *Client) logError(msg string, args ...any) {
	if l := c.logger.Load(); l != nil && *l != nil {
		(*l).Error(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if l := c.logger.Load(); l != nil && *l != nil {
		(*l).Warn(msg, args...)
	}
}

// wrapHandler adapts handler to paho with panic recovery and error logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logError("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logWarn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
