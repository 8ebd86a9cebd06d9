package gateway

import (
	"sync"

	"github.com/gorilla/websocket"

	"jamlab/contract"
)

// wsSink adapts one gorilla connection to contract.ConnectionSink.
// Gorilla connections allow a single concurrent writer, so every write
// goes through the mutex.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSSink(conn *websocket.Conn) *wsSink {
	return &wsSink{conn: conn}
}

func (s *wsSink) Send(frame contract.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(frame)
}
