package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	// readTimeout bounds how long a silent client keeps a stream open.
	// Pings reset it.
	readTimeout = 5 * time.Minute
)

// Stream wraps a connection with a write mutex so the state ticker and the
// read-loop acknowledgements can share it safely. gorilla/websocket permits
// only one concurrent writer per connection.
type Stream struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewStream wraps an upgraded connection.
func NewStream(conn *websocket.Conn) *Stream {
	return &Stream{conn: conn}
}

// WriteJSON sends a payload under the write lock with a deadline.
func (s *Stream) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse.
func (s *Stream) WriteError(errMsg string) error {
	return s.WriteJSON(ErrorResponse{Event: EventError, Error: errMsg})
}

// ReadEnvelope blocks for the next client message.
func (s *Stream) ReadEnvelope() (*RequestEnvelope, error) {
	var msg RequestEnvelope
	s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	if err := s.conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
