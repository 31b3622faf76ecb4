package realtime

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default values for optional configuration fields.
const (
	DefaultPath                 = "/ws"
	DefaultTokenParam           = "token"
	DefaultConnectTimeout       = 10 * time.Second
	DefaultReconnectBase        = 1 * time.Second
	DefaultReconnectMax         = 60 * time.Second
	DefaultReconnectJitter      = 500 * time.Millisecond
	DefaultMaxReconnectAttempts = 10
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultAuthRequestTimeout   = 10 * time.Second
	DefaultAuthRetryMin         = 500 * time.Millisecond
	DefaultAuthRetryMax         = 15 * time.Second
	DefaultAuthMaxAttempts      = 4

	defaultQueueCapacity = 512
	defaultRecvBuffer    = 64
)

// Config configures a client instance. Duration fields are plain
// time.Duration values; in YAML they are given in nanoseconds.
type Config struct {
	// Host is the server host[:port] the socket connects to.
	Host string `yaml:"host"`
	// Path is the websocket endpoint path.
	Path string `yaml:"path"`
	// Secure selects wss over ws, mirroring whether the hosting page is
	// served over TLS.
	Secure bool `yaml:"secure"`
	// TokenParam is the query parameter carrying the credential.
	TokenParam string `yaml:"token_param"`

	// AuthURL is the credential-issuing REST endpoint.
	AuthURL            string        `yaml:"auth_url"`
	AuthRequestTimeout time.Duration `yaml:"auth_request_timeout"`
	AuthRetryMin       time.Duration `yaml:"auth_retry_min"`
	AuthRetryMax       time.Duration `yaml:"auth_retry_max"`
	AuthMaxAttempts    int           `yaml:"auth_max_attempts"`

	// ConnectTimeout bounds a single connection attempt, dialing plus
	// waiting for the server welcome.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	ReconnectBase        time.Duration `yaml:"reconnect_base"`
	ReconnectMax         time.Duration `yaml:"reconnect_max"`
	ReconnectJitter      time.Duration `yaml:"reconnect_jitter"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// QueueCapacity bounds the outbound queue; overflow evicts oldest.
	QueueCapacity int `yaml:"queue_capacity"`
	// RecvBuffer sizes the inbound envelope channel.
	RecvBuffer int `yaml:"recv_buffer"`
}

// DefaultConfig returns a config with every optional field at its default.
// Host and AuthURL must still be set by the caller.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.TokenParam == "" {
		c.TokenParam = DefaultTokenParam
	}
	if c.AuthRequestTimeout == 0 {
		c.AuthRequestTimeout = DefaultAuthRequestTimeout
	}
	if c.AuthRetryMin == 0 {
		c.AuthRetryMin = DefaultAuthRetryMin
	}
	if c.AuthRetryMax == 0 {
		c.AuthRetryMax = DefaultAuthRetryMax
	}
	if c.AuthMaxAttempts == 0 {
		c.AuthMaxAttempts = DefaultAuthMaxAttempts
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReconnectBase == 0 {
		c.ReconnectBase = DefaultReconnectBase
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = DefaultReconnectMax
	}
	if c.ReconnectJitter == 0 {
		c.ReconnectJitter = DefaultReconnectJitter
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = defaultQueueCapacity
	}
	if c.RecvBuffer == 0 {
		c.RecvBuffer = defaultRecvBuffer
	}
}

// Validate checks that required fields are set and values are sane.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.AuthURL == "" {
		return errors.New("auth_url is required")
	}
	return c.validateTunables()
}

// validateTunables checks everything except Host and AuthURL, which are not
// required when the corresponding collaborator is injected.
func (c *Config) validateTunables() error {
	if c.ReconnectBase <= 0 {
		return errors.New("reconnect_base must be positive")
	}
	if c.ReconnectMax < c.ReconnectBase {
		return errors.New("reconnect_max cannot be below reconnect_base")
	}
	if c.MaxReconnectAttempts < 1 {
		return errors.New("max_reconnect_attempts must be >= 1")
	}
	if c.AuthMaxAttempts < 1 {
		return errors.New("auth_max_attempts must be >= 1")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat_interval must be positive")
	}
	if c.QueueCapacity < 1 {
		return errors.New("queue_capacity must be >= 1")
	}
	return nil
}

// LoadConfig reads a YAML config file, expands ${VAR} environment variables,
// applies defaults and validates.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config yaml")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "validate config")
	}
	return cfg, nil
}
