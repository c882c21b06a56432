package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/services"
	"roomcast/internal/core/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type staticBus struct{ endpoint string }

func (b *staticBus) Emit(context.Context, string, any) error         { return nil }
func (b *staticBus) Request(context.Context, string, any, any) error { return nil }
func (b *staticBus) On(string, func(json.RawMessage))                {}
func (b *staticBus) Endpoint() string                                { return b.endpoint }
func (b *staticBus) Close() error                                    { return nil }

type staticConsumer struct{ producerID domain.ProducerID }

func (c *staticConsumer) ID() string                    { return "c-" + string(c.producerID) }
func (c *staticConsumer) ProducerID() domain.ProducerID { return c.producerID }
func (c *staticConsumer) Kind() domain.MediaKind        { return domain.KindVideo }
func (c *staticConsumer) Pause() error                  { return nil }
func (c *staticConsumer) Resume() error                 { return nil }
func (c *staticConsumer) Close() error                  { return nil }

func newSessionRouter(t *testing.T) (*gin.Engine, *session.State, *services.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	state := session.New("alice", "room-1", domain.EventConference, domain.LevelHost, domain.DisplaySettings{
		MeetingDisplayType: domain.DisplayMedia,
		ItemPageLimit:      4,
	})
	registry := services.NewRegistry(services.NopMetrics{}, zap.NewNop())
	alerts := services.NewAlertService(time.Minute, zap.NewNop())

	router := gin.New()
	NewSessionHandler(state, registry, alerts).SetupRoutes(router)
	return router, state, registry
}

func getJSON(t *testing.T, router *gin.Engine, path string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var out map[string]any
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestGetSessionReportsRoomSummary(t *testing.T) {
	router, state, _ := newSessionRouter(t)
	state.UpsertParticipant(domain.Participant{Name: "bob"})
	state.SetCoHost("bob")
	state.AddRecvIP("203.0.113.7")

	out := getJSON(t, router, "/api/v1/session")

	assert.Equal(t, "alice", out["member"])
	assert.Equal(t, "room-1", out["room_name"])
	assert.Equal(t, "bob", out["co_host"])
	assert.Equal(t, float64(1), out["participants"])
	assert.Equal(t, []any{"203.0.113.7"}, out["room_recv_ips"])
}

func TestListTransportsExposesPauseState(t *testing.T) {
	router, _, registry := newSessionRouter(t)
	registry.Add(&services.ConsumerTransport{
		ProducerID: "p1",
		Kind:       domain.KindVideo,
		Consumer:   &staticConsumer{producerID: "p1"},
		Bus:        &staticBus{endpoint: "wss://media.example.com"},
		Paused:     true,
	})

	out := getJSON(t, router, "/api/v1/transports")

	transports := out["transports"].([]any)
	assert.Len(t, transports, 1)
	entry := transports[0].(map[string]any)
	assert.Equal(t, "p1", entry["producer_id"])
	assert.Equal(t, true, entry["paused"])
	assert.Equal(t, "wss://media.example.com", entry["endpoint"])
}

func TestListStreamsReturnsAllTrackingLists(t *testing.T) {
	router, state, _ := newSessionRouter(t)
	state.AddStream(domain.Stream{ProducerID: "p1", Kind: domain.KindVideo})
	state.SetActiveStreams([]domain.Stream{{ProducerID: "p1", Kind: domain.KindVideo}})

	out := getJSON(t, router, "/api/v1/streams")

	assert.Len(t, out["all_streams"].([]any), 1)
	assert.Len(t, out["active_streams"].([]any), 1)
	assert.Nil(t, out["screen_stream"])
}
