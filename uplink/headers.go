package uplink

import (
	"fmt"
	"net/http"
	"os"
)

const defaultTokenEnv = "NPM_TOKEN"

// headerOptions carries the per-request knobs the header builder needs
// beyond the static uplink configuration.
type headerOptions struct {
	// incoming, when non-nil, is the caller-supplied request whose Via
	// header (if any) must be chained rather than replaced.
	incoming http.Header
	// overrides are caller-supplied headers that take precedence over the
	// base headers this builder would otherwise set (but not over the
	// uplink config's own headers, which win over everything).
	overrides http.Header
	// remoteAddress is the originating client address to forward, if known.
	remoteAddress string
	// explicitProxy is true when this uplink traverses a configured HTTP(S)
	// proxy for the current request's host; X-Forwarded-For is suppressed
	// in that case.
	explicitProxy bool
	// forwardAuth controls whether auth injection applies. The search
	// streamer passes false, since search results shouldn't leak the
	// configured credential to the upstream registry.
	forwardAuth bool
	// etag, when set, forces a conditional request: If-None-Match plus a
	// clamped Accept header that callers cannot override.
	etag string
}

// buildHeaders assembles outgoing request headers, applying auth injection,
// header overrides, and the Via/X-Forwarded-For forwarding rules.
func buildHeaders(upname string, cfg UplinkConfig, main MainConfig, opts headerOptions) (http.Header, error) {
	h := make(http.Header)

	setIfAbsent(h, opts.overrides, "Accept", "application/json;")
	setIfAbsent(h, opts.overrides, "Accept-Encoding", "gzip")
	setIfAbsent(h, opts.overrides, "User-Agent", fmt.Sprintf("npm (%s)", main.UserAgent))

	if opts.forwardAuth && cfg.Auth != nil && h.Get("Authorization") == "" && opts.overrides.Get("Authorization") == "" {
		token, err := resolveToken(*cfg.Auth)
		if err != nil {
			return nil, wrapErrorKind(upname, err)
		}
		h.Set("Authorization", fmt.Sprintf("%s %s", cfg.Auth.Type, token))
	}

	for name := range opts.overrides {
		h.Set(name, opts.overrides.Get(name))
	}
	// config.headers overrides everything, intentionally (including auth).
	for name, value := range cfg.Headers {
		h.Set(name, value)
	}

	applyForwarding(h, main.ServerID, opts)

	if opts.etag != "" {
		h.Set("If-None-Match", opts.etag)
		h.Set("Accept", "application/json;")
	}

	return h, nil
}

func setIfAbsent(h, overrides http.Header, name, value string) {
	if overrides.Get(name) != "" {
		return
	}
	h.Set(name, value)
}

// resolveToken resolves the credential in precedence order: a literal
// token, then the named env var, then NPM_TOKEN when token_env is the
// boolean true.
func resolveToken(auth AuthConfig) (string, error) {
	if auth.Token != "" {
		return auth.Token, nil
	}
	if auth.TokenEnv != "" {
		if v := os.Getenv(auth.TokenEnv); v != "" {
			return v, nil
		}
	}
	if auth.TokenEnvDefault {
		if v := os.Getenv(defaultTokenEnv); v != "" {
			return v, nil
		}
	}
	return "", newError("auth", TokenRequired)
}

// applyForwarding sets Via unconditionally (chaining onto a prior hop, if
// any), and sets X-Forwarded-For only when no explicit proxy is in play for
// this request.
func applyForwarding(h http.Header, serverID string, opts headerOptions) {
	via := fmt.Sprintf("1.1 %s (Verdaccio)", serverID)
	if opts.incoming != nil {
		if prior := opts.incoming.Get("Via"); prior != "" {
			via = prior + ", " + via
		}
	}
	h.Set("Via", via)

	if !opts.explicitProxy && opts.remoteAddress != "" {
		h.Set("X-Forwarded-For", opts.remoteAddress)
	}
}

// wrapErrorKind re-tags an *Error produced deeper in the call stack (e.g.
// from resolveToken) with the caller's upname, preserving its Kind.
func wrapErrorKind(upname string, err error) error {
	if ue, ok := err.(*Error); ok {
		ue.Upname = upname
		return ue
	}
	return err
}
