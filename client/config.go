package client

import (
	"time"

	"github.com/adamwoolhether/zapflux/client/throttle"
)

// Defaults applied by DefaultConfig.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRedirects   = 10
	DefaultMaxAuthRetries = 1
)

// LogFlags gates log emission at the request, response and error
// boundaries of a send cycle.
type LogFlags struct {
	Requests  bool `yaml:"requests"`
	Responses bool `yaml:"responses"`
	Errors    bool `yaml:"errors"`
}

// Config is the declarative part of a Client's configuration. It is
// read-only once the Client is built.
type Config struct {
	BaseURL           string            `yaml:"base_url" validate:"omitempty,url"`
	DefaultHeaders    map[string]string `yaml:"default_headers"`
	UserAgent         string            `yaml:"user_agent"`
	Timeout           time.Duration     `yaml:"timeout" validate:"gte=0"`
	NoFollowRedirects bool              `yaml:"no_follow_redirects"`
	MaxRedirects      int               `yaml:"max_redirects" validate:"gte=0,lte=100"`
	MaxAuthRetries    int               `yaml:"max_auth_retries" validate:"gte=0,lte=10"`
	ErrorSafety       bool              `yaml:"error_safety"`
	EncoderWorkers    int               `yaml:"encoder_workers" validate:"gte=0"`
	Throttle          *throttle.Config  `yaml:"throttle"`
	Log               LogFlags          `yaml:"log"`
}

// DefaultConfig returns the configuration a Client starts from before
// options are applied.
func DefaultConfig() Config {
	return Config{
		Timeout:        DefaultTimeout,
		MaxRedirects:   DefaultMaxRedirects,
		MaxAuthRetries: DefaultMaxAuthRetries,
		ErrorSafety:    true,
		Log:            LogFlags{Errors: true},
	}
}

// Validate checks c against its declared constraints.
func (c Config) Validate() error {
	return validateStruct(c)
}
