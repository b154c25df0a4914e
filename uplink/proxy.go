package uplink

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// resolveProxy decides whether an explicit HTTP(S) proxy applies to
// hostname, honouring no_proxy suffix matching, and returns the resolved
// proxy URL (empty if none applies).
func resolveProxy(hostname string, scheme string, cfg UplinkConfig, main MainConfig) string {
	var proxyVar, noProxyVar string

	if scheme == "https" {
		proxyVar = cfg.HTTPSProxy
		if proxyVar == "" {
			proxyVar = main.HTTPSProxy
		}
	} else {
		proxyVar = cfg.HTTPProxy
		if proxyVar == "" {
			proxyVar = main.HTTPProxy
		}
	}

	noProxyVar = cfg.NoProxy
	if noProxyVar == "" {
		noProxyVar = main.NoProxy
	}

	if proxyVar == "" {
		return ""
	}

	normalizedHost := hostname
	if !strings.HasPrefix(normalizedHost, ".") {
		normalizedHost = "." + normalizedHost
	}

	for _, entry := range strings.Split(noProxyVar, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.HasPrefix(entry, ".") {
			entry = "." + entry
		}
		if strings.HasSuffix(normalizedHost, entry) {
			return ""
		}
	}

	return proxyVar
}

// buildTransport constructs the per-uplink *http.Transport: either bound to
// an explicit proxy, or a direct keep-alive transport tuned per
// cfg.AgentOptions. It is called exactly once, at client construction.
func buildTransport(cfg UplinkConfig, proxyURL string, caPool *tlsCAPool) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: keepAliveDuration(cfg.AgentOptions.KeepAlive),
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: !cfg.StrictSSL, //nolint:gosec // opt-in via strict_ssl config
	}
	if caPool != nil {
		pool, err := caPool.load()
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.AgentOptions.MaxSockets,
		MaxIdleConnsPerHost: cfg.AgentOptions.MaxFreeSockets,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig:     tlsConfig,
	}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, wrapError("proxy", BadStatusCode, err)
		}
		transport.Proxy = http.ProxyURL(parsed)
	}

	return transport, nil
}

func keepAliveDuration(iv Interval) time.Duration {
	if iv <= 0 {
		return 30 * time.Second
	}
	return time.Duration(iv) * time.Millisecond
}
