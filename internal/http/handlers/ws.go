package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/fieldsentry/backend/internal/broadcast"
	"github.com/fieldsentry/backend/internal/http/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin policy is enforced by the CORS layer in front of us
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// @Summary Live presence stream
// @Description Streams presence updates for one topic over a websocket. Topics: "event:<id>" or "supervisors" (supervisor role only).
// @Tags stream
// @Param topic query string true "topic"
// @Success 101
// @Failure 400 {object} map[string]any
// @Router /ws [get]
func (h *Handler) Stream(c *gin.Context) {
	topic := c.Query("topic")
	switch {
	case topic == broadcast.TopicSupervisors:
		if c.GetString(middleware.ObserverRoleKey) != middleware.RoleSupervisor {
			writeError(c, http.StatusForbidden, "FORBIDDEN", "Supervisors topic requires supervisor role", nil)
			return
		}
	case strings.HasPrefix(topic, "event:"):
	default:
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", `topic must be "supervisors" or "event:<id>"`, nil)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.Hub.Subscribe(observerID(c), topic)
	defer h.Hub.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case upd, ok := <-sub.C():
			if !ok {
				// replaced by a newer subscription for the same observer
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(upd); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
