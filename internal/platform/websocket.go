package platform

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket link constants.
const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = (wsPongWait * 9) / 10
)

// WebSocketDialer returns a Dialer that connects to the platform endpoint url.
// maxMessageSize bounds inbound frames; zero leaves gorilla's default.
func WebSocketDialer(url string, header http.Header, maxMessageSize int64, logger Logger) Dialer {
	if logger == nil {
		logger = noopLogger{}
	}
	return func(ctx context.Context, onFrame func([]byte)) (Link, error) {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("dialing %s: %w", url, err)
		}

		l := &wsLink{conn: conn, logger: logger, done: make(chan struct{})}
		if maxMessageSize > 0 {
			conn.SetReadLimit(maxMessageSize)
		}
		go l.readPump(onFrame)
		go l.pingLoop()
		return l, nil
	}
}

// wsLink is a Link over a gorilla WebSocket connection.
type wsLink struct {
	conn   *websocket.Conn
	logger Logger

	// gorilla supports one concurrent writer
	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

func (l *wsLink) Send(frame []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	//nolint:errcheck // Best-effort deadline; write error caught below
	l.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := l.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

func (l *wsLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		l.writeMu.Lock()
		//nolint:errcheck // Best-effort close message
		l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteWait))
		l.writeMu.Unlock()
		err = l.conn.Close()
	})
	return err
}

// readPump feeds inbound frames to onFrame until the connection ends.
func (l *wsLink) readPump(onFrame func([]byte)) {
	defer l.Close() //nolint:errcheck // Already closing

	//nolint:errcheck // Best-effort deadline on connection setup
	l.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, frame, err := l.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.logger.Warn("platform websocket read error", "error", err)
			} else {
				l.logger.Debug("platform websocket closed", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		l.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		onFrame(frame)
	}
}

func (l *wsLink) pingLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.writeMu.Lock()
			err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			l.writeMu.Unlock()
			if err != nil {
				l.logger.Debug("platform websocket ping failed", "error", err)
				return
			}
		}
	}
}
