// Package platform implements the client side of the Gray Logic platform
// protocol.
//
// Frames are JSON messages carried by a Link. Two links are provided: a direct
// WebSocket (WebSocketDialer) and an MQTT broker bridge (MQTTDialer).
//
// Requests carry a correlation id and block until the matching response, a
// platform Error, the context, or the request timeout. Everything else the
// platform sends is a push: model Added / ValueChange / Deleted events and
// out-of-band session events such as sess:SessionExpired. Mirror applies the
// model pushes to a model.Store.
//
// # Usage
//
//	client := platform.NewClient(cfg.GetRequestTimeout())
//	dialer := platform.WebSocketDialer(cfg.Platform.URL, nil, int64(cfg.Platform.MaxMessageSize), log)
//	if err := client.Connect(ctx, dialer); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	reg := client.Mirror(store)
//	defer reg.Unregister()
package platform
