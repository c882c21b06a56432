package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	API struct {
		BaseURL     string        `yaml:"base_url"`
		UserName    string        `yaml:"user_name"`
		Key         string        `yaml:"key"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	Signal struct {
		URL              string        `yaml:"url"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
		RequestTimeout   time.Duration `yaml:"request_timeout"`
		PingInterval     time.Duration `yaml:"ping_interval"`
		PongTimeout      time.Duration `yaml:"pong_timeout"`
		EmitsPerSecond   float64       `yaml:"emits_per_second"`
		EmitBurst        int           `yaml:"emit_burst"`
		ReconnectAttempts int          `yaml:"reconnect_attempts"`
	} `yaml:"signal"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
		PortRange struct {
			Min uint16 `yaml:"min"`
			Max uint16 `yaml:"max"`
		} `yaml:"port_range"`
		MaxBitrate int `yaml:"max_bitrate"`
	} `yaml:"webrtc"`

	Room struct {
		Action        string `yaml:"action"`
		Name          string `yaml:"name"`
		Member        string `yaml:"member"`
		EventType     string `yaml:"event_type"`
		Capacity      int    `yaml:"capacity"`
		Duration      int    `yaml:"duration"`
		AudioOnly     bool   `yaml:"audio_only"`
		DisplayType   string `yaml:"display_type"`
		ItemPageLimit int    `yaml:"item_page_limit"`
		LocalEgress   struct {
			Enabled bool   `yaml:"enabled"`
			URL     string `yaml:"url"`
		} `yaml:"local_egress"`
	} `yaml:"room"`

	Reconcile struct {
		SettleDelay time.Duration `yaml:"settle_delay"`
	} `yaml:"reconcile"`

	Debug struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RateLimit       struct {
			Enabled           bool    `yaml:"enabled"`
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"debug"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Signal.URL == "" {
		return fmt.Errorf("signal.url must not be empty")
	}
	if c.Signal.HandshakeTimeout <= 0 {
		return fmt.Errorf("signal.handshake_timeout must be > 0")
	}
	if c.Signal.RequestTimeout <= 0 {
		return fmt.Errorf("signal.request_timeout must be > 0")
	}
	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.EmitsPerSecond <= 0 {
		return fmt.Errorf("signal.emits_per_second must be > 0")
	}
	if c.Signal.EmitBurst <= 0 {
		return fmt.Errorf("signal.emit_burst must be > 0")
	}
	if c.Signal.ReconnectAttempts < 0 {
		return fmt.Errorf("signal.reconnect_attempts must be >= 0")
	}

	if c.WebRTC.PortRange.Min > 0 || c.WebRTC.PortRange.Max > 0 {
		if c.WebRTC.PortRange.Min == 0 || c.WebRTC.PortRange.Max == 0 {
			return fmt.Errorf("webrtc.port_range.min and max must both be set when one is set")
		}
		if c.WebRTC.PortRange.Min >= c.WebRTC.PortRange.Max {
			return fmt.Errorf("webrtc.port_range.min must be < max")
		}
	}

	switch c.Room.Action {
	case "create", "join":
	default:
		return fmt.Errorf("room.action must be create or join")
	}
	if c.Room.Member == "" {
		return fmt.Errorf("room.member must not be empty")
	}
	switch c.Room.EventType {
	case "conference", "webinar", "broadcast", "chat":
	default:
		return fmt.Errorf("room.event_type must be one of conference|webinar|broadcast|chat")
	}
	switch c.Room.DisplayType {
	case "video", "media", "all":
	default:
		return fmt.Errorf("room.display_type must be one of video|media|all")
	}
	if c.Room.ItemPageLimit <= 0 {
		return fmt.Errorf("room.item_page_limit must be > 0")
	}
	if c.Room.LocalEgress.Enabled && c.Room.LocalEgress.URL == "" {
		return fmt.Errorf("room.local_egress.url must not be empty when local egress is enabled")
	}

	if c.Reconcile.SettleDelay < 0 {
		return fmt.Errorf("reconcile.settle_delay must be >= 0")
	}

	if c.Debug.RateLimit.Enabled {
		if c.Debug.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("debug.rate_limit.requests_per_second must be > 0")
		}
		if c.Debug.RateLimit.Burst <= 0 {
			return fmt.Errorf("debug.rate_limit.burst must be > 0")
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing is enabled")
		}
		if c.Tracing.SampleRate <= 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be in (0, 1]")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file falls back to defaults.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.API.BaseURL = "https://mediasfu.com/v1/rooms"
	cfg.API.Timeout = 10 * time.Second

	cfg.Signal.URL = "wss://media.mediasfu.com"
	cfg.Signal.HandshakeTimeout = 10 * time.Second
	cfg.Signal.RequestTimeout = 15 * time.Second
	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.EmitsPerSecond = 100
	cfg.Signal.EmitBurst = 200
	cfg.Signal.ReconnectAttempts = 3

	cfg.WebRTC.MaxBitrate = 2500

	cfg.Room.Action = "join"
	cfg.Room.EventType = "conference"
	cfg.Room.Capacity = 16
	cfg.Room.Duration = 60
	cfg.Room.DisplayType = "media"
	cfg.Room.ItemPageLimit = 4
	cfg.Room.LocalEgress.Enabled = false

	cfg.Reconcile.SettleDelay = 100 * time.Millisecond

	cfg.Debug.Address = ":8089"
	cfg.Debug.ReadTimeout = 10 * time.Second
	cfg.Debug.WriteTimeout = 10 * time.Second
	cfg.Debug.ShutdownTimeout = 10 * time.Second
	cfg.Debug.RateLimit.Enabled = false
	cfg.Debug.RateLimit.RequestsPerSecond = 50
	cfg.Debug.RateLimit.Burst = 100

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("ROOMCAST_SIGNAL_URL"); url != "" {
		c.Signal.URL = url
	}
	if base := os.Getenv("ROOMCAST_API_BASE_URL"); base != "" {
		c.API.BaseURL = base
	}
	if user := os.Getenv("ROOMCAST_API_USER"); user != "" {
		c.API.UserName = user
	}
	if key := os.Getenv("ROOMCAST_API_KEY"); key != "" {
		c.API.Key = key
	}
	if room := os.Getenv("ROOMCAST_ROOM_NAME"); room != "" {
		c.Room.Name = room
	}
	if member := os.Getenv("ROOMCAST_ROOM_MEMBER"); member != "" {
		c.Room.Member = member
	}
	if level := os.Getenv("ROOMCAST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
