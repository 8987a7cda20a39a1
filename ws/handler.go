package ws

import (
	"net/http"

	"disaster_backend/internal/logger"
	"disaster_backend/internal/middleware"
	"disaster_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	Manager  *WebSocketManager
	upgrader websocket.Upgrader
}

// NewWebSocketHandler - пустой allowedOrigins или "*" пропускает любой origin
func NewWebSocketHandler(manager *WebSocketManager, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		Manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS godoc
// @Summary Live event stream
// @Description Upgrades to WebSocket. Send {"type":"subscribe","topics":["new_flood"]} to receive events.
// @Tags realtime
// @Security BearerAuth
// @Success 101
// @Failure 401 {object} apperrors.ErrorResponse
// @Router /ws [get]
func (h *WebSocketHandler) ServeWS(c *gin.Context) {
	actor := middleware.GetActor(c)
	if actor == nil {
		apperrors.HandleError(c, apperrors.ErrMissingToken)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.CtxWarn(c.Request.Context(), "WebSocket upgrade error", "error", err)
		return
	}

	client := newClient(h.Manager, conn, actor.ID)
	if !h.Manager.join(client) {
		_ = conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}
