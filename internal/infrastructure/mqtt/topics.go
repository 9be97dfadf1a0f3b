package mqtt

import "fmt"

// Topic prefixes for the client side of the platform bridge.
const (
	// TopicPrefix is the base for every Gray Logic topic.
	TopicPrefix = "graylogic"

	// TopicPrefixPlatform is the base for topics consumed by the platform.
	TopicPrefixPlatform = "graylogic/platform"

	// TopicPrefixClient is the base for per-client topics.
	TopicPrefixClient = "graylogic/client"
)

// Topics provides builders for Gray Logic client MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	inbox := topics.ClientInbox("graylogic-client")
//	// Returns: "graylogic/client/graylogic-client/inbox"
type Topics struct{}

// PlatformRequests returns the topic a client publishes its platform frames to.
//
// Example: graylogic/platform/request/graylogic-client
func (Topics) PlatformRequests(clientID string) string {
	return fmt.Sprintf("%s/request/%s", TopicPrefixPlatform, clientID)
}

// ClientInbox returns the topic the platform publishes responses and pushes to.
//
// Example: graylogic/client/graylogic-client/inbox
func (Topics) ClientInbox(clientID string) string {
	return fmt.Sprintf("%s/%s/inbox", TopicPrefixClient, clientID)
}

// ClientStatus returns the retained online/offline status topic of a client.
// The Last Will and Testament is published here.
//
// Example: graylogic/client/graylogic-client/status
func (Topics) ClientStatus(clientID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixClient, clientID)
}
