// Package mqtt provides MQTT connectivity for the Gray Logic client.
//
// When the platform link is configured as "mqtt", platform frames travel over
// a broker instead of a direct WebSocket:
//
//	Client ──publish──▶ graylogic/platform/request/{clientID} ──▶ Platform
//	Client ◀─subscribe─ graylogic/client/{clientID}/inbox      ◀── Platform
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after reconnect
//   - Last Will and Testament (LWT) on the client status topic
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	broker, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer broker.Close()
//
//	broker.AddStateListener(func(connected bool, err error) {
//	    log.Info("broker state", "connected", connected, "error", err)
//	})
//	dial := platform.MQTTDialer(broker)
package mqtt
