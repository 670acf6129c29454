package connections

import (
	"sync"
	"time"

	"github.com/deepgram/chatform/internal/logger"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// TimeoutConfig holds the various timeout settings for WebSocket connections
type TimeoutConfig struct {
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// StreamInfo describes a chat stream served over a WebSocket.
type StreamInfo struct {
	Mode       string
	RemoteAddr string
	StartedAt  time.Time
}

// Manager tracks the WebSocket connections that are currently streaming.
type Manager struct {
	connections sync.Map
	timeouts    TimeoutConfig
}

// DefaultTimeouts provides sensible default timeout values
var DefaultTimeouts = TimeoutConfig{
	PongWait:   30 * time.Second,
	PingPeriod: 27 * time.Second, // (PongWait * 9) / 10
	WriteWait:  10 * time.Second,
}

// NewManager creates a new connection manager with the specified timeouts
func NewManager(timeouts TimeoutConfig) *Manager {
	return &Manager{
		timeouts: timeouts,
	}
}

// Track registers conn and returns a func that removes it again.
func (m *Manager) Track(conn *websocket.Conn, info StreamInfo) func() {
	m.connections.Store(conn, info)
	return func() {
		m.connections.Delete(conn)
	}
}

// Info returns what is known about conn.
func (m *Manager) Info(conn *websocket.Conn) (StreamInfo, bool) {
	v, ok := m.connections.Load(conn)
	if !ok {
		return StreamInfo{}, false
	}
	return v.(StreamInfo), true
}

// Count returns the current number of active connections
func (m *Manager) Count() int {
	count := 0
	m.connections.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}

// Timeouts returns the current timeout configuration
func (m *Manager) Timeouts() TimeoutConfig {
	return m.timeouts
}

// KeepAlive pings conn every PingPeriod until done is closed or a ping
// fails. Control frames may be written concurrently with data frames.
func (m *Manager) KeepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(m.timeouts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(m.timeouts.WriteWait)
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// CloseAll sends a going-away close frame to every tracked connection.
func (m *Manager) CloseAll(reason string) {
	deadline := time.Now().Add(m.timeouts.WriteWait)
	m.connections.Range(func(key, value interface{}) bool {
		conn := key.(*websocket.Conn)
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
		if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			log.Debug().Str("component", logger.WEBSOCKET).Err(err).Msg("Failed to send going-away frame")
		}
		return true
	})
}
