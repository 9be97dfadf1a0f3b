package platform

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-client/internal/infrastructure/mqtt"
)

// mqttQoS is used for every platform frame on the broker link.
const mqttQoS = 1

// BrokerClient is the part of the MQTT infrastructure client the broker link
// needs.
type BrokerClient interface {
	ClientID() string
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTDialer returns a Dialer that carries platform frames over an MQTT broker.
// Frames are published to the client's platform request topic and received on
// the client inbox.
//
// paho delivers messages for one subscription in order from its router
// goroutine, which keeps frames in arrival order.
func MQTTDialer(broker BrokerClient) Dialer {
	return func(ctx context.Context, onFrame func([]byte)) (Link, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		topics := mqtt.Topics{}
		l := &mqttLink{
			broker:  broker,
			publish: topics.PlatformRequests(broker.ClientID()),
			inbox:   topics.ClientInbox(broker.ClientID()),
		}

		err := broker.Subscribe(l.inbox, mqttQoS, func(_ string, payload []byte) error {
			onFrame(payload)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("subscribing to %s: %w", l.inbox, err)
		}
		return l, nil
	}
}

type mqttLink struct {
	broker  BrokerClient
	publish string
	inbox   string
}

func (l *mqttLink) Send(frame []byte) error {
	return l.broker.Publish(l.publish, frame, mqttQoS, false)
}

// Close drops the inbox subscription. The broker connection is owned by the
// caller.
func (l *mqttLink) Close() error {
	return l.broker.Unsubscribe(l.inbox)
}
