package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"phoned/internal/plugins/console"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxMsgSize   = 1 << 12
	streamBuffer = 256
)

// Stream message types.
const (
	MessageRow     = "row"
	MessagePresent = "present"

	// MessageClose is sent by viewers to hide the console window.
	MessageClose = "close"
)

// StreamMessage is one message of the console WebSocket stream.
type StreamMessage struct {
	Type string       `json:"type"`
	Row  *console.Row `json:"row,omitempty"`
}

var upgrader = websocket.Upgrader{
	// The API serves local tools only
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleConsoleStream sends every existing row, then each new row and a
// present message whenever the console window is raised. A close message
// from the viewer hides the window.
func (s *Server) handleConsoleStream(w http.ResponseWriter, r *http.Request) {
	view, ok := s.console()
	if !ok {
		http.Error(w, "console plugin is not loaded", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	updates := make(chan StreamMessage, streamBuffer)
	overflow := make(chan struct{})
	var overflowOnce sync.Once
	push := func(msg StreamMessage) {
		select {
		case updates <- msg:
		default:
			// A viewer that cannot keep up is dropped rather than slowing the console
			overflowOnce.Do(func() { close(overflow) })
		}
	}

	backlog, unsubscribe := view.Log().SubscribeWithBacklog(func(row console.Row) {
		push(StreamMessage{Type: MessageRow, Row: &row})
	})
	defer unsubscribe()
	stopPresent := view.Window().OnPresent(func() {
		push(StreamMessage{Type: MessagePresent})
	})
	defer stopPresent()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var msg StreamMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.logger.Debug("Ignoring malformed viewer message", zap.Error(err))
				continue
			}
			if msg.Type == MessageClose {
				view.Window().Close()
				s.logger.Debug("Console window closed by viewer")
			}
		}
	}()

	for i := range backlog {
		if err := s.send(conn, StreamMessage{Type: MessageRow, Row: &backlog[i]}); err != nil {
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-overflow:
			s.logger.Warn("Console viewer too slow, closing stream")
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg := <-updates:
			if err := s.send(conn, msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, msg StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("WebSocket write failed", zap.Error(err))
		return err
	}
	return nil
}
