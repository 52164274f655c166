package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = (wsPongTimeout * 9) / 10

	// maxCloseReason is the longest close-frame reason RFC 6455 allows.
	maxCloseReason = 123
)

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(s.origins) == 0 || s.origins[origin]
		},
	}
}

// StreamRunWebSocket handles GET /runs/{id}/ws.
//
// It carries the same stream as StreamRunEvents: one JSON text message per
// Update, then a close frame. A failed run closes with 1011 and the run's
// error as the reason. Errors before the upgrade are plain HTTP responses.
func (s *Server) StreamRunWebSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	sub, err := s.store.Subscribe(id)
	if err != nil {
		s.respondError(w, r, err, "run not found")
		return
	}
	defer sub.Close()

	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.log.WarnContext(r.Context(), "websocket upgrade failed", "run_id", id, "error", err)
		return
	}
	defer conn.Close()

	// The client sends nothing; reading only services control frames and
	// notices when it goes away.
	gone := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case u, open := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !open {
				code, reason := websocket.CloseNormalClosure, "run completed"
				if msg, failed := s.streamFailure(id, sub); failed {
					code, reason = websocket.CloseInternalServerErr, truncate(msg, maxCloseReason)
				}
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
				return
			}
			if err := conn.WriteJSON(u); err != nil {
				s.log.WarnContext(r.Context(), "websocket write failed", "run_id", id, "error", err)
				return
			}
		}
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
