package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/riggy/internal/monitoring"
)

const streamWriteWait = 200 * time.Millisecond

// stream upgrades to a websocket and pushes a window snapshot every interval
// until the client goes away or the server context ends. Client messages are
// read and discarded so close frames are noticed.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.pushFrame(conn); err != nil {
			return
		}
		select {
		case <-gone:
			return
		case <-s.ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) pushFrame(conn *websocket.Conn) error {
	st := s.mgr.Status()
	f := frame{Status: st, Label: st.Label(), Snapshot: s.mgr.Store().Snapshot(false)}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(f)
}
