package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/audit"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/coordinator"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/prioritizer"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/projector"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/registry"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/service"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/middleware"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/response"
)

// Handler handles HTTP requests for the overlay service.
type Handler struct {
	overlayService service.OverlayService
	authMiddleware *middleware.AuthMiddleware
	ws             *WSHandler
	instanceID     string
}

// NewHandler creates a new HTTP handler.
func NewHandler(overlayService service.OverlayService, authMiddleware *middleware.AuthMiddleware, ws *WSHandler, instanceID string) *Handler {
	return &Handler{
		overlayService: overlayService,
		authMiddleware: authMiddleware,
		ws:             ws,
		instanceID:     instanceID,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		sessions := api.Group("/sessions")
		{
			// Public routes
			sessions.GET("", h.ListSessions)
			sessions.GET("/:id/state", h.GetState)
			sessions.GET("/:id/events", h.ListEvents)
			sessions.GET("/:id/projection", h.GetProjection)
			if h.ws != nil {
				sessions.GET("/:id/ws", h.ws.HandleWebSocket)
			}

			// Operator routes
			op := h.authMiddleware.RequireOperator()
			sessions.POST("/:id", op, h.OpenSession)
			sessions.DELETE("/:id", op, h.CloseSession)
			sessions.POST("/:id/broadcast", op, h.Broadcast)
			sessions.POST("/:id/interrupts", op, h.AddInterrupt)
			sessions.DELETE("/:id/interrupts/:alert_id", op, h.DismissInterrupt)
			sessions.PUT("/:id/show", op, h.SetShow)
			sessions.PUT("/:id/ticker", op, h.SetTicker)
			sessions.POST("/:id/events", op, h.SubmitEvent)
		}
	}
}

// Health reports liveness and the sessions this instance writes for.
func (h *Handler) Health(c *gin.Context) {
	sessions := h.overlayService.ListSessions(c.Request.Context())
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.SessionID)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"instance": h.instanceID,
		"sessions": ids,
	})
}

// ListSessions lists the sessions this instance runs.
func (h *Handler) ListSessions(c *gin.Context) {
	response.Success(c, h.overlayService.ListSessions(c.Request.Context()))
}

// OpenSession claims a session and starts its coordinator.
func (h *Handler) OpenSession(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	co, err := h.overlayService.OpenSession(ctx, sessionID)
	if err != nil {
		writeError(c, err, "failed to open session")
		return
	}

	audit.Log(ctx, audit.ActionOpenSession, middleware.GetOperatorID(c), sessionID, "session opened")
	snap, err := co.GetState(ctx)
	if err != nil {
		writeError(c, err, "failed to read session state")
		return
	}
	response.Created(c, snap)
}

// CloseSession stops the coordinator and discards its state.
func (h *Handler) CloseSession(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	if err := h.overlayService.CloseSession(ctx, sessionID); err != nil {
		writeError(c, err, "failed to close session")
		return
	}

	audit.Log(ctx, audit.ActionCloseSession, middleware.GetOperatorID(c), sessionID, "session closed")
	response.Success(c, gin.H{"message": "session closed"})
}

// GetState returns the committed snapshot.
func (h *Handler) GetState(c *gin.Context) {
	snap, err := h.overlayService.State(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to get state")
		return
	}
	response.Success(c, snap)
}

// Broadcast re-sends the current snapshot to every subscriber.
func (h *Handler) Broadcast(c *gin.Context) {
	if err := h.overlayService.Broadcast(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err, "failed to request broadcast")
		return
	}
	response.Accepted(c, gin.H{"message": "broadcast queued"})
}

// AddInterrupt queues operator content.
func (h *Handler) AddInterrupt(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	sessionID := c.Param("id")

	var req domain.AddInterruptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind add interrupt request")
		response.BadRequest(c, err.Error())
		return
	}

	id, err := h.overlayService.AddInterrupt(ctx, sessionID, &req)
	if err != nil {
		writeError(c, err, "failed to add interrupt")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionAddInterrupt, middleware.GetOperatorID(c), sessionID, req.ContentType+":"+id, "interrupt queued")
	response.Accepted(c, domain.InterruptResponse{ID: id})
}

// DismissInterrupt queues removal of an interrupt. Unknown ids are accepted.
func (h *Handler) DismissInterrupt(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")
	alertID := c.Param("alert_id")

	if err := h.overlayService.DismissInterrupt(ctx, sessionID, alertID); err != nil {
		writeError(c, err, "failed to dismiss interrupt")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionDismissInterrupt, middleware.GetOperatorID(c), sessionID, alertID, "interrupt dismissed")
	response.Accepted(c, domain.InterruptResponse{ID: alertID})
}

// SetShow switches the show context.
func (h *Handler) SetShow(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	var req domain.SetShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.overlayService.SetShow(ctx, sessionID, req.Show); err != nil {
		writeError(c, err, "failed to set show")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionSetShow, middleware.GetOperatorID(c), sessionID, req.Show, "show changed")
	response.Accepted(c, req)
}

// SetTicker replaces the ticker rotation.
func (h *Handler) SetTicker(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	var req domain.SetTickerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.overlayService.SetTicker(ctx, sessionID, req.Rotation); err != nil {
		writeError(c, err, "failed to set ticker rotation")
		return
	}

	audit.Log(ctx, audit.ActionSetTicker, middleware.GetOperatorID(c), sessionID, "ticker rotation changed")
	response.Accepted(c, req)
}

// SubmitEvent validates and applies an external event.
func (h *Handler) SubmitEvent(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	var raw domain.RawEvent
	if err := c.ShouldBindJSON(&raw); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	e, err := h.overlayService.SubmitEvent(ctx, sessionID, raw)
	if err != nil {
		writeError(c, err, "failed to submit event")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionIngestEvent, middleware.GetOperatorID(c), sessionID, string(e.Type), "event accepted")
	response.Accepted(c, e)
}

// ListEvents returns journaled events, optionally only those after ?since=.
func (h *Handler) ListEvents(c *gin.Context) {
	ctx := c.Request.Context()

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := projector.ParseTimestamp(raw)
		if err != nil {
			response.BadRequest(c, "since must be an ISO-8601 timestamp")
			return
		}
		since = &t
	}

	events, err := h.overlayService.Events(ctx, c.Param("id"), since)
	if err != nil {
		writeError(c, err, "failed to list events")
		return
	}
	response.Success(c, events)
}

// GetProjection replays the journal into stream state.
func (h *Handler) GetProjection(c *gin.Context) {
	proj, err := h.overlayService.Projection(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to project events")
		return
	}
	response.Success(c, proj)
}

// writeError maps service errors to responses.
func writeError(c *gin.Context, err error, msg string) {
	if code := projector.ErrorCode(err); code != "" {
		response.Error(c, http.StatusBadRequest, code, err.Error())
		return
	}

	switch {
	case errors.Is(err, coordinator.ErrSessionNotFound):
		response.NotFound(c, "session not found")
	case errors.Is(err, registry.ErrSessionOwned):
		response.Conflict(c, "SESSION_OWNED", err.Error())
	case errors.Is(err, coordinator.ErrStopped):
		response.ServiceUnavailable(c, "session is shutting down")
	case errors.Is(err, prioritizer.ErrEmptyContentType),
		errors.Is(err, prioritizer.ErrNegativeDuration),
		errors.Is(err, domain.ErrDurationTooLong),
		errors.Is(err, service.ErrEmptySessionID),
		errors.Is(err, service.ErrEmptyAlertID):
		response.BadRequest(c, err.Error())
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(msg)
		response.InternalError(c, msg)
	}
}

