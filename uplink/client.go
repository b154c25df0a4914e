package uplink

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Client is the per-uplink façade: constructed
// once from configuration, shared for the process lifetime, safe for
// concurrent use. All fields besides health are read-only after
// construction; only the health tracker takes a lock.
type Client struct {
	upname  string
	baseURL string
	cfg     UplinkConfig
	main    MainConfig

	httpClient     *http.Client
	explicitProxy  bool
	defaultTimeout time.Duration

	health *healthTracker
	logger *zap.Logger
}

// New constructs a Client for one uplink. It performs no network I/O: it
// only parses and normalises configuration and builds the HTTP transport.
func New(upname string, cfg UplinkConfig, main MainConfig, logger *zap.Logger) (*Client, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(cfg.normalizedURL())
	if err != nil {
		return nil, fmt.Errorf("%s: invalid url %q: %w", upname, cfg.URL, err)
	}

	if cfg.Timeout >= 1000 {
		logger.Warn("uplink timeout looks like seconds misread as milliseconds",
			zap.String("upname", upname),
			zap.Int64("timeout_ms", int64(cfg.Timeout)))
	}

	proxyURL := resolveProxy(parsed.Hostname(), parsed.Scheme, cfg, main)

	var caPool *tlsCAPool
	if cfg.CA != "" {
		caPool = newTLSCAPool(cfg.CA)
	}

	transport, err := buildTransport(cfg, proxyURL, caPool)
	if err != nil {
		return nil, err
	}

	defaultTimeout := 30 * time.Second
	if cfg.Timeout > 0 {
		defaultTimeout = time.Duration(cfg.Timeout) * time.Millisecond
	}

	failTimeout := 60 * time.Second
	if cfg.FailTimeout > 0 {
		failTimeout = time.Duration(cfg.FailTimeout) * time.Millisecond
	}

	if cfg.Auth != nil {
		if cfg.Auth.Type != AuthBasic && cfg.Auth.Type != AuthBearer {
			return nil, newError(upname, AuthInvalid)
		}
	}

	return &Client{
		upname:  upname,
		baseURL: cfg.normalizedURL(),
		cfg:     cfg,
		main:    main,

		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		explicitProxy:  proxyURL != "",
		defaultTimeout: defaultTimeout,

		health: newHealthTracker(upname, cfg.MaxFails, failTimeout, logger),
		logger: logger,
	}, nil
}

// Upname returns the logical name of this uplink.
func (c *Client) Upname() string {
	return c.upname
}

// IsOffline reports the circuit breaker's current state.
func (c *Client) IsOffline() bool {
	return c.health.isOffline()
}

// FailedRequests reports the circuit breaker's current consecutive-failure
// count, for status reporting.
func (c *Client) FailedRequests() int {
	return c.health.failedCount()
}
