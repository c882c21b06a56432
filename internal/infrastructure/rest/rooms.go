package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"roomcast/internal/core/domain"
	"roomcast/pkg/cache"
	"roomcast/pkg/circuitbreaker"
	"roomcast/pkg/utils"
	"roomcast/pkg/validation"

	"go.uber.org/zap"
)

// Credentials is the apiUserName:apiKey (or apiToken) pair accepted by the
// room-management endpoint.
type Credentials struct {
	APIUserName string
	APIKey      string
}

// Validate applies the client-side rules: key exactly 64 alphanumerics,
// username at least 6. Invalid credentials never reach the network.
func (c Credentials) Validate() error {
	if err := validation.ValidateAPIUserName(c.APIUserName); err != nil {
		return fmt.Errorf("%s: %w", err, domain.ErrInvalidCredentials)
	}
	if err := validation.ValidateAPIKey(c.APIKey); err != nil {
		return fmt.Errorf("%s: %w", err, domain.ErrInvalidCredentials)
	}
	return nil
}

// CreateRoomRequest carries the event parameters for a create or join call.
type CreateRoomRequest struct {
	Action            string `json:"action"`
	Duration          int    `json:"duration,omitempty"`
	Capacity          int    `json:"capacity,omitempty"`
	EventType         string `json:"eventType,omitempty"`
	UserName          string `json:"userName"`
	MeetingID         string `json:"meetingID,omitempty"`
	RecordOnly        bool   `json:"recordOnly,omitempty"`
	SafeRoom          bool   `json:"safeRoom,omitempty"`
	AutoStartSafeRoom bool   `json:"autoStartSafeRoom,omitempty"`
}

// RoomResponse is the success payload of the room endpoint.
type RoomResponse struct {
	RoomName  string `json:"roomName"`
	Secret    string `json:"secret"`
	Link      string `json:"link"`
	PublicURL string `json:"publicURL,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client talks to the room-management REST endpoint. Requests run through a
// circuit breaker so a failing service is not hammered on reconnect loops,
// and successful responses are cached briefly to absorb duplicate joins.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	cache   *cache.Cache
	logger  *zap.SugaredLogger
}

func NewClient(baseURL string, creds Credentials, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log := logger.Sugar()

	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		log.Warnw("room service circuit state changed", "from", from.String(), "to", to.String())
	})

	return &Client{
		baseURL: baseURL,
		creds:   creds,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		cache:   cache.NewCache(30 * time.Second),
		logger:  log,
	}
}

// CreateRoom creates a new room. A missing meeting ID is generated
// client-side so retries target the same room.
func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (*RoomResponse, error) {
	req.Action = "create"
	if req.MeetingID == "" {
		req.MeetingID = utils.GenerateMeetingID()
	}
	return c.do(ctx, req)
}

// JoinRoom joins an existing room.
func (c *Client) JoinRoom(ctx context.Context, req CreateRoomRequest) (*RoomResponse, error) {
	req.Action = "join"
	return c.do(ctx, req)
}

// Close releases background resources held by the client.
func (c *Client) Close() {
	c.cache.Stop()
}

func (c *Client) do(ctx context.Context, payload CreateRoomRequest) (*RoomResponse, error) {
	if err := c.creds.Validate(); err != nil {
		return nil, err
	}
	if payload.MeetingID != "" {
		if err := validation.ValidateRoomName(payload.MeetingID); err != nil {
			return nil, fmt.Errorf("%s: %w", err, domain.ErrRoomRejected)
		}
	}

	cacheKey := payload.Action + "/" + payload.MeetingID + "/" + payload.UserName
	if cached, ok := c.cache.Get(cacheKey); ok {
		room := cached.(RoomResponse)
		return &room, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal room request: %w", err)
	}

	var room RoomResponse
	err = c.breaker.Execute(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build room request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s:%s", c.creds.APIUserName, c.creds.APIKey))

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return fmt.Errorf("room request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			var apiErr errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
				return fmt.Errorf("%s: %w", apiErr.Error, domain.ErrRoomRejected)
			}
			return fmt.Errorf("room request failed with status %d: %w", resp.StatusCode, domain.ErrRoomRejected)
		}

		if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
			return fmt.Errorf("decode room response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, room)
	c.logger.Infow("room request succeeded",
		"action", payload.Action,
		"room_name", room.RoomName,
		"api_user", utils.MaskSensitive(c.creds.APIUserName, 3),
	)
	return &room, nil
}
