package http

import (
	"net/http"

	"roomcast/internal/core/services"
	"roomcast/internal/core/session"

	"github.com/gin-gonic/gin"
)

// SessionHandler exposes read-only views over the live room session for
// debugging and dashboards.
type SessionHandler struct {
	state    *session.State
	registry *services.Registry
	alerts   *services.AlertService
}

func NewSessionHandler(state *session.State, registry *services.Registry, alerts *services.AlertService) *SessionHandler {
	return &SessionHandler{
		state:    state,
		registry: registry,
		alerts:   alerts,
	}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/session", h.GetSession)
		api.GET("/participants", h.ListParticipants)
		api.GET("/streams", h.ListStreams)
		api.GET("/transports", h.ListTransports)
		api.GET("/alerts", h.ListAlerts)
		api.GET("/messages", h.ListMessages)
	}
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	snap := h.state.Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"member":       snap.Member,
		"room_name":    snap.RoomName,
		"event_type":   snap.EventType,
		"level":        string(snap.Level),
		"co_host":      snap.CoHost,
		"participants": len(snap.Participants),
		"display": gin.H{
			"meeting_display_type": snap.Display.MeetingDisplayType,
			"lock_screen":          snap.Display.LockScreen,
			"shared":               snap.Display.Shared,
			"item_page_limit":      snap.Display.ItemPageLimit,
		},
		"recording":     snap.Recording,
		"room_recv_ips": snap.RoomRecvIPs,
		"transports":    h.registry.Len(),
	})
}

func (h *SessionHandler) ListParticipants(c *gin.Context) {
	snap := h.state.Snapshot()

	out := make([]gin.H, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		out = append(out, gin.H{
			"name":      p.Name,
			"socket_id": p.SocketID,
			"level":     string(p.Level),
			"muted":     p.Muted,
			"video_on":  p.VideoOn,
			"joined_at": p.JoinedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"participants": out})
}

func (h *SessionHandler) ListStreams(c *gin.Context) {
	snap := h.state.Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"all_streams":    snap.AllStreams,
		"active_streams": snap.ActiveStreams,
		"new_limited":    snap.NewLimited,
		"old_streams":    snap.OldAllStreams,
		"screen_stream":  snap.ScreenStream,
	})
}

func (h *SessionHandler) ListTransports(c *gin.Context) {
	entries := h.registry.Snapshot()

	out := make([]gin.H, 0, len(entries))
	for _, t := range entries {
		out = append(out, gin.H{
			"producer_id": t.ProducerID,
			"kind":        t.Kind,
			"paused":      h.registry.IsPaused(t),
			"endpoint":    t.Bus.Endpoint(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"transports": out})
}

func (h *SessionHandler) ListAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": h.alerts.Recent()})
}

func (h *SessionHandler) ListMessages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"messages": h.state.Messages()})
}
