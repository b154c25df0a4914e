package uplink

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AuthType names the supported Authorization scheme.
type AuthType string

const (
	AuthBasic  AuthType = "Basic"
	AuthBearer AuthType = "Bearer"
)

// AuthConfig describes how to resolve the bearer/basic token for an uplink.
// Token is the literal
// precedence winner, TokenEnv names an environment variable, and
// TokenEnvDefault (set when token_env is JSON `true`) falls back to
// NPM_TOKEN.
type AuthConfig struct {
	Type            AuthType
	Token           string
	TokenEnv        string
	TokenEnvDefault bool
}

// authConfigWire is the raw JSON shape auth configs are written in.
type authConfigWire struct {
	Type     string          `json:"type"`
	Token    string          `json:"token"`
	TokenEnv json.RawMessage `json:"token_env"`
}

// UnmarshalJSON implements json.Unmarshaler, resolving the token_env field's
// string-or-bool polymorphism into the AuthConfig fields above.
func (a *AuthConfig) UnmarshalJSON(data []byte) error {
	var wire authConfigWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	switch strings.ToLower(wire.Type) {
	case "basic":
		a.Type = AuthBasic
	case "bearer":
		a.Type = AuthBearer
	default:
		return newError("auth", AuthInvalid)
	}

	a.Token = wire.Token

	if len(wire.TokenEnv) > 0 {
		var asBool bool
		if err := json.Unmarshal(wire.TokenEnv, &asBool); err == nil {
			a.TokenEnvDefault = asBool
		} else {
			var asString string
			if err := json.Unmarshal(wire.TokenEnv, &asString); err != nil {
				return fmt.Errorf("auth.token_env must be a string or boolean: %w", err)
			}
			a.TokenEnv = asString
		}
	}

	return nil
}

// AgentOptions tunes the keep-alive HTTP transport built for an uplink.
type AgentOptions struct {
	KeepAlive      Interval `json:"keepAlive,omitempty"`
	MaxSockets     int      `json:"maxSockets,omitempty"`
	MaxFreeSockets int      `json:"maxFreeSockets,omitempty"`
}

// UplinkConfig is the immutable, per-instance configuration of one uplink.
type UplinkConfig struct {
	URL          string            `json:"url"`
	CA           string            `json:"ca,omitempty"`
	Timeout      Interval          `json:"timeout,omitempty"`
	MaxAge       Interval          `json:"maxage,omitempty"`
	MaxFails     int               `json:"max_fails,omitempty"`
	FailTimeout  Interval          `json:"fail_timeout,omitempty"`
	StrictSSL    bool              `json:"strict_ssl,omitempty"`
	Auth         *AuthConfig       `json:"auth,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	HTTPProxy    string            `json:"http_proxy,omitempty"`
	HTTPSProxy   string            `json:"https_proxy,omitempty"`
	NoProxy      string            `json:"no_proxy,omitempty"`
	AgentOptions AgentOptions      `json:"agent_options,omitempty"`
}

// MainConfig is the subset of the enclosing registry server's configuration
// this package needs.
type MainConfig struct {
	UserAgent  string `json:"user_agent,omitempty"`
	ServerID   string `json:"server_id,omitempty"`
	HTTPProxy  string `json:"http_proxy,omitempty"`
	HTTPSProxy string `json:"https_proxy,omitempty"`
	NoProxy    string `json:"no_proxy,omitempty"`
}

// normalizedURL returns cfg.URL with any trailing slash stripped, so the
// base URL never contains one in stored form.
func (cfg UplinkConfig) normalizedURL() string {
	return strings.TrimRight(cfg.URL, "/")
}

// validate enforces max_fails >= 1 and non-negative intervals, returning a
// defaulted copy.
func (cfg UplinkConfig) validate() (UplinkConfig, error) {
	out := cfg
	if out.MaxFails < 1 {
		out.MaxFails = 2
	}
	if out.Timeout < 0 || out.MaxAge < 0 || out.FailTimeout < 0 {
		return UplinkConfig{}, newError("config", BadInterval)
	}
	if out.AgentOptions.MaxSockets == 0 {
		out.AgentOptions.MaxSockets = 40
	}
	if out.AgentOptions.MaxFreeSockets == 0 {
		out.AgentOptions.MaxFreeSockets = 10
	}
	return out, nil
}
