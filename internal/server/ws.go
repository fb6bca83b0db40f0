package server

import (
	"net/http"
	"time"

	"github.com/ayusman/lasertracker/internal/log"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// DetectionsHandler pushes one Detection per processed frame over a WebSocket.
type DetectionsHandler struct {
	display *StreamDisplay
}

// NewDetectionsHandler creates a new DetectionsHandler for d.
func NewDetectionsHandler(d *StreamDisplay) *DetectionsHandler {
	return &DetectionsHandler{display: d}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *DetectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := log.With("remote", r.RemoteAddr)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	l.Debug("detections client connected")

	ch, ok := h.display.subscribe()
	if !ok {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		return
	}
	defer h.display.unsubscribe(ch)

	// Drain client messages so close frames are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case det, ok := <-ch:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(det); err != nil {
				l.Debug("detections client gone", "error", err)
				return
			}
		}
	}
}
