package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unklstewy/radarfusion/pkg/logger"
)

// handleWebSocket sends the latest snapshot on connect and then one per
// sampler tick. Frames a slow client cannot take are dropped.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	log := s.log.With(logger.String("remote_addr", conn.RemoteAddr().String()))
	log.Debug("WebSocket client connected")

	updates, unsubscribe := s.snapshots.Subscribe(4)
	defer unsubscribe()

	// the read loop only notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if snap := s.snapshots.Latest(); !snap.Time.IsZero() {
		if err := s.writeSnapshot(conn, SnapshotToDTO(snap)); err != nil {
			log.Debug("WebSocket write failed", logger.Error(err))
			return
		}
	}

	for {
		select {
		case <-gone:
			log.Debug("WebSocket client disconnected")
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return
			}
			if err := s.writeSnapshot(conn, SnapshotToDTO(snap)); err != nil {
				log.Debug("WebSocket write failed", logger.Error(err))
				return
			}
		}
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn, dto SnapshotDTO) error {
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteJSON(dto)
}
