// README: WebSocket endpoint streaming every change of one ride request.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"newber/internal/http/middleware"
	"newber/internal/modules/ride"
	"newber/internal/modules/user"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WatchHandler struct {
	rides *ride.Service
	log   logrus.FieldLogger
}

func NewWatchHandler(svc *ride.Service, log logrus.FieldLogger) *WatchHandler {
	return &WatchHandler{rides: svc, log: log}
}

type changeMessage struct {
	Removed bool             `json:"removed"`
	Request *requestResponse `json:"request,omitempty"`
	ID      string           `json:"id"`
}

// Watch sends the current state first, then one message per change. The socket is closed
// after the removal message.
func (h *WatchHandler) Watch(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.Get(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	uid := caller(c)
	pendingForDriver := r.Status == ride.StatusPending && middleware.CallerRole(c) == string(user.RoleDriver)
	if !r.Involves(uid) && !pendingForDriver {
		writeError(c, http.StatusForbidden, "forbidden: not your request")
		return
	}

	sub, err := h.rides.Watch(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	defer sub.Cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).WithField("request_id", id).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()
	log := h.log.WithFields(logrus.Fields{"request_id": id, "uid": uid})

	// The read loop only handles control frames; it ends the watch when the client goes away.
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer sub.Cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case change, ok := <-sub.C():
			if !ok {
				return
			}
			msg := changeMessage{Removed: change.Removed, ID: string(change.Request.ID)}
			if !change.Removed {
				resp := newRequestResponse(&change.Request)
				msg.Request = &resp
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("watch write failed")
				return
			}
			if change.Removed {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "request removed"),
					time.Now().Add(writeWait))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.WithError(err).Debug("watch ping failed")
				return
			}
		}
	}
}
