package llm

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the OpenAI API root. Paths are appended to it.
const DefaultBaseURL = "https://api.openai.com"

// ErrMissingAPIKey is returned by NewClient when no key is configured.
var ErrMissingAPIKey = errors.New("api key is required")

type Config struct {
	BaseURL string
	APIKey  string

	RequestTimeout time.Duration // per-request timeout (default: 30s)
	MaxRetries     int           // retries after the first attempt (default: 2)
	BaseBackoff    time.Duration // initial backoff (default: 200ms)

	MaxIdleConnsPerHost int // default: 16

	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// Validate checks required fields only.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries must not be negative")
	}
	return nil
}

// WithDefaults returns a copy of Config with defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 200 * time.Millisecond
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 16
	}

	return cfg
}

type client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a chat completion client. A negative MaxRetries is
// rejected; zero disables retries.
func NewClient(cfg Config, logger *zap.Logger) (Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("llmclient: invalid config: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: defaultTransport(cfg)}
	}

	return &client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("llmclient"),
	}, nil
}

func defaultTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConnsPerHost * 2,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// Close releases idle connections.
func (c *client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
