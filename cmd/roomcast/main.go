package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/ports"
	"roomcast/internal/core/services"
	"roomcast/internal/core/session"
	httphandlers "roomcast/internal/handlers/http"
	"roomcast/internal/infrastructure/media"
	"roomcast/internal/infrastructure/middleware"
	"roomcast/internal/infrastructure/monitoring"
	"roomcast/internal/infrastructure/rest"
	"roomcast/internal/infrastructure/signal"
	"roomcast/pkg/config"
	"roomcast/pkg/logger"
	"roomcast/pkg/retry"
	"roomcast/pkg/tracing"
	"roomcast/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type joinRoomPayload struct {
	RoomName    string `json:"roomName"`
	Member      string `json:"member"`
	Secret      string `json:"sec"`
	APIUserName string `json:"apiUserName"`
}

type joinRoomAck struct {
	Success     bool            `json:"success"`
	Reason      string          `json:"reason,omitempty"`
	IsLevel     string          `json:"islevel"`
	RoomRecvIPs []string        `json:"roomRecvIPs"`
	RTPCaps     json.RawMessage `json:"rtpCapabilities,omitempty"`
}

func main() {
	startTime := time.Now()

	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "roomcast",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	collector := monitoring.NewCollector()

	// Create or join the room through the management API before any
	// socket work. Invalid credentials fail here without a network call.
	roomClient := rest.NewClient(cfg.API.BaseURL, rest.Credentials{
		APIUserName: cfg.API.UserName,
		APIKey:      cfg.API.Key,
	}, cfg.API.Timeout, zapLogger)
	defer roomClient.Close()

	roomReq := rest.CreateRoomRequest{
		Action:    cfg.Room.Action,
		Duration:  cfg.Room.Duration,
		Capacity:  cfg.Room.Capacity,
		EventType: cfg.Room.EventType,
		UserName:  cfg.Room.Member,
		MeetingID: cfg.Room.Name,
	}

	ctx := context.Background()
	var room *rest.RoomResponse
	if cfg.Room.Action == "create" {
		room, err = roomClient.CreateRoom(ctx, roomReq)
	} else {
		room, err = roomClient.JoinRoom(ctx, roomReq)
	}
	if err != nil {
		log.Fatalw("room request failed", "action", cfg.Room.Action, "error", err)
	}
	log.Infow("room ready", "room", room.RoomName, "link", room.Link)

	sigOpts := signal.Options{
		URL:              cfg.Signal.URL,
		HandshakeTimeout: cfg.Signal.HandshakeTimeout,
		RequestTimeout:   cfg.Signal.RequestTimeout,
		PingInterval:     cfg.Signal.PingInterval,
		PongTimeout:      cfg.Signal.PongTimeout,
		EmitsPerSecond:   cfg.Signal.EmitsPerSecond,
		EmitBurst:        cfg.Signal.EmitBurst,
		Reconnect: retry.Config{
			MaxAttempts:  cfg.Signal.ReconnectAttempts,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
			Jitter:       true,
		},
		RTTObserver: collector.ObserveSignalRTT,
	}

	bus, err := signal.Dial(ctx, sigOpts, zapLogger)
	if err != nil {
		log.Fatalw("signaling dial failed", "url", cfg.Signal.URL, "error", err)
	}
	defer bus.Close()

	var joined joinRoomAck
	err = bus.Request(ctx, "joinRoom", joinRoomPayload{
		RoomName:    room.RoomName,
		Member:      cfg.Room.Member,
		Secret:      room.Secret,
		APIUserName: cfg.API.UserName,
	}, &joined)
	if err != nil {
		log.Fatalw("joinRoom failed", "room", room.RoomName, "error", err)
	}
	if !joined.Success {
		log.Fatalw("joinRoom rejected", "room", room.RoomName, "reason", joined.Reason)
	}

	level := domain.ParticipantLevel(joined.IsLevel)
	if level == "" {
		level = domain.LevelAttendee
	}

	state := session.New(
		cfg.Room.Member,
		domain.RoomName(room.RoomName),
		domain.EventType(cfg.Room.EventType),
		level,
		domain.DisplaySettings{
			MeetingDisplayType: domain.DisplayType(cfg.Room.DisplayType),
			ItemPageLimit:      cfg.Room.ItemPageLimit,
		},
	)

	mediaCfg := buildMediaConfig(cfg)
	engine := media.NewEngine(mediaCfg, collector, zapLogger)
	defer engine.Close()

	var localEngine ports.MediaEngine
	if cfg.Room.LocalEgress.Enabled {
		local := media.NewEngine(mediaCfg, collector, zapLogger)
		defer local.Close()
		localEngine = local
	}

	registry := services.NewRegistry(collector, zapLogger)
	reconciler := services.NewReconciler(state, registry, cfg.Reconcile.SettleDelay, collector, zapLogger)
	gate := services.NewCapabilityGate(media.StaticDeviceChecker{
		Microphone: true,
		Camera:     true,
		Screen:     true,
	}, cfg.Room.AudioOnly)
	alerts := services.NewAlertService(0, zapLogger)
	layout := services.NewLayout()
	coHost := services.NewCoHostTracker(cfg.Room.Member, level, domain.EventType(cfg.Room.EventType))

	dialer := func(ctx context.Context, endpoint string) (ports.SignalBus, error) {
		opts := sigOpts
		opts.URL = endpoint
		return signal.Dial(ctx, opts, zapLogger)
	}

	manager := services.NewTransportManager(
		engine, localEngine, bus, dialer,
		registry, state, reconciler, gate, alerts, collector, zapLogger,
	)

	router := signal.NewRouter(state, registry, manager, reconciler, layout, coHost, alerts, zapLogger)

	meetingDone := make(chan struct{})
	router.OnMeetingEnd(func() {
		select {
		case <-meetingDone:
		default:
			close(meetingDone)
		}
	})

	router.Attach(bus)
	manager.SetBusAttacher(router.Attach)

	// Subscribe to everything already producing in the room, including
	// secondary media domains.
	if err := manager.ReceiveAllPipedTransports(ctx, domain.RoomName(room.RoomName), cfg.Room.Member); err != nil {
		log.Warnw("initial piped subscription failed", "error", err)
	}
	if len(joined.RoomRecvIPs) > 0 {
		if err := manager.ConnectIPs(ctx, joined.RoomRecvIPs); err != nil {
			log.Warnw("connecting secondary domains failed", "error", err)
		}
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpRouter := gin.New()
	httpRouter.Use(middleware.RecoveryMiddleware(log))
	httpRouter.Use(middleware.ErrorHandlerMiddleware(log))
	httpRouter.Use(middleware.TracingMiddleware(state))
	httpRouter.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	sessionHandler := httphandlers.NewSessionHandler(state, registry, alerts)
	sessionHandler.SetupRoutes(httpRouter)
	mediaHandler := httphandlers.NewMediaHandler(manager, reconciler)
	mediaHandler.SetupRoutes(httpRouter)

	httpRouter.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    utils.FormatDuration(time.Since(startTime)),
		})
	})
	httpRouter.GET("/ready", func(c *gin.Context) {
		select {
		case <-meetingDone:
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "meeting ended"})
		default:
			c.JSON(200, gin.H{"status": "ready", "room": room.RoomName})
		}
	})
	httpRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         cfg.Debug.Address,
		Handler:      httpRouter,
		ReadTimeout:  cfg.Debug.ReadTimeout,
		WriteTimeout: cfg.Debug.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("debug server listening", "address", cfg.Debug.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("debug server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	case <-meetingDone:
		log.Info("meeting ended, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Debug.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Errorw("error shutting down tracer", "error", err)
		}
	}

	log.Info("roomcast stopped")
}

func buildMediaConfig(cfg *config.Config) media.Config {
	var mc media.Config
	for _, s := range cfg.WebRTC.ICEServers {
		mc.ICEServers = append(mc.ICEServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(mc.ICEServers) == 0 {
		mc.ICEServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}
	mc.PortRange.Min = cfg.WebRTC.PortRange.Min
	mc.PortRange.Max = cfg.WebRTC.PortRange.Max
	mc.MaxBitrate = cfg.WebRTC.MaxBitrate
	return mc
}
