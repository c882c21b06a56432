package http

import (
	stderrors "errors"
	"net/http"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/ports"
	"roomcast/pkg/errors"

	"github.com/gin-gonic/gin"
)

// MediaHandler drives the send transports and reconciliation from the
// control API.
type MediaHandler struct {
	manager    ports.TransportManager
	reconciler ports.Reconciler
}

func NewMediaHandler(manager ports.TransportManager, reconciler ports.Reconciler) *MediaHandler {
	return &MediaHandler{
		manager:    manager,
		reconciler: reconciler,
	}
}

func (h *MediaHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/media")
	{
		api.POST("/:kind/connect", h.Connect)
		api.POST("/:kind/disconnect", h.Disconnect)
	}
	router.POST("/api/v1/reconcile", h.Reconcile)
}

type ConnectRequest struct {
	TrackID    string `json:"track_id" binding:"required,max=128"`
	MimeType   string `json:"mime_type" binding:"max=64"`
	MaxBitrate int    `json:"max_bitrate" binding:"min=0"`
	Simulcast  bool   `json:"simulcast"`
	Target     string `json:"target" binding:"omitempty,oneof=all remote local"`
}

func parseKind(raw string) (domain.MediaKind, bool) {
	switch raw {
	case "audio":
		return domain.KindAudio, true
	case "video":
		return domain.KindVideo, true
	case "screen":
		return domain.KindScreen, true
	}
	return "", false
}

func (h *MediaHandler) Connect(c *gin.Context) {
	kind, ok := parseKind(c.Param("kind"))
	if !ok {
		c.Error(errors.NewInvalidInputError("kind must be one of audio|video|screen"))
		return
	}

	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	target := domain.TargetAll
	if req.Target != "" {
		target = domain.TransportTarget(req.Target)
	}

	params := domain.SendParams{
		TrackID:     req.TrackID,
		MimeType:    req.MimeType,
		MaxBitrate:  req.MaxBitrate,
		Simulcast:   req.Simulcast,
		ScreenShare: kind == domain.KindScreen,
	}

	ctx := c.Request.Context()
	if err := h.manager.CreateSendTransport(ctx, kind, params); err != nil && !stderrors.Is(err, domain.ErrProducerExists) {
		c.Error(err)
		return
	}

	var err error
	switch kind {
	case domain.KindAudio:
		err = h.manager.ConnectSendTransportAudio(ctx, params, target)
	case domain.KindVideo:
		err = h.manager.ConnectSendTransportVideo(ctx, params, target)
	case domain.KindScreen:
		err = h.manager.ConnectSendTransportScreen(ctx, params, target)
	}
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"kind": kind, "target": target, "status": "connected"})
}

func (h *MediaHandler) Disconnect(c *gin.Context) {
	kind, ok := parseKind(c.Param("kind"))
	if !ok {
		c.Error(errors.NewInvalidInputError("kind must be one of audio|video|screen"))
		return
	}

	ctx := c.Request.Context()
	var err error
	switch kind {
	case domain.KindVideo:
		err = h.manager.DisconnectSendTransportVideo(ctx)
	case domain.KindScreen:
		err = h.manager.DisconnectSendTransportScreen(ctx)
	default:
		c.Error(errors.NewInvalidInputError("only video and screen transports can be disconnected"))
		return
	}
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"kind": kind, "status": "disconnected"})
}

func (h *MediaHandler) Reconcile(c *gin.Context) {
	if err := h.reconciler.ProcessConsumerTransports(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reconciled"})
}
