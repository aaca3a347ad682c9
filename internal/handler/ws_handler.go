package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/config"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/hub"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/service"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler attaches overlay renderers to session snapshots.
type WSHandler struct {
	hub     *hub.Hub
	service service.OverlayService
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.OverlayService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
	}
}

// HandleWebSocket upgrades the request and subscribes the connection to the
// session. The first frame is the current snapshot.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	session, err := h.service.Session(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to find session")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, session, h.wsCfg)
	h.hub.Register(client)

	if err := session.Subscribe(client); err != nil {
		l.Warn().Err(err).Msg("failed to subscribe websocket client")
		h.hub.Unregister(client)
		conn.Close()
		return
	}

	l.Info().Str(log.FieldSubscriber, client.ID()).Msg("overlay client connected")

	go client.WritePump()
	go client.ReadPump(hub.HandleMessage)
}
