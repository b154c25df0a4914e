package uplink

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthConfigUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    AuthConfig
		wantErr bool
	}{
		{
			name: "literal token",
			raw:  `{"type":"bearer","token":"abc123"}`,
			want: AuthConfig{Type: AuthBearer, Token: "abc123"},
		},
		{
			name: "token_env as string",
			raw:  `{"type":"basic","token_env":"MY_TOKEN"}`,
			want: AuthConfig{Type: AuthBasic, TokenEnv: "MY_TOKEN"},
		},
		{
			name: "token_env as boolean true falls back to default env",
			raw:  `{"type":"bearer","token_env":true}`,
			want: AuthConfig{Type: AuthBearer, TokenEnvDefault: true},
		},
		{
			name: "type is case-insensitive",
			raw:  `{"type":"BEARER","token":"abc123"}`,
			want: AuthConfig{Type: AuthBearer, Token: "abc123"},
		},
		{
			name:    "unsupported type",
			raw:     `{"type":"digest","token":"abc123"}`,
			wantErr: true,
		},
		{
			name:    "token_env neither string nor bool",
			raw:     `{"type":"basic","token_env":42}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got AuthConfig
			err := json.Unmarshal([]byte(tt.raw), &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveToken(t *testing.T) {
	t.Run("literal token wins over everything", func(t *testing.T) {
		token, err := resolveToken(AuthConfig{Token: "literal"})
		require.NoError(t, err)
		assert.Equal(t, "literal", token)
	})

	t.Run("named env var", func(t *testing.T) {
		t.Setenv("UPLINK_TEST_TOKEN", "from-env")
		token, err := resolveToken(AuthConfig{TokenEnv: "UPLINK_TEST_TOKEN"})
		require.NoError(t, err)
		assert.Equal(t, "from-env", token)
	})

	t.Run("boolean true falls back to NPM_TOKEN", func(t *testing.T) {
		t.Setenv(defaultTokenEnv, "default-env-token")
		token, err := resolveToken(AuthConfig{TokenEnvDefault: true})
		require.NoError(t, err)
		assert.Equal(t, "default-env-token", token)
	})

	t.Run("nothing resolves", func(t *testing.T) {
		os.Unsetenv("UPLINK_TEST_TOKEN_MISSING")
		_, err := resolveToken(AuthConfig{TokenEnv: "UPLINK_TEST_TOKEN_MISSING"})
		require.Error(t, err)
		var uplinkErr *Error
		require.ErrorAs(t, err, &uplinkErr)
		assert.Equal(t, TokenRequired, uplinkErr.Kind)
	})
}

func TestUplinkConfigNormalizedURL(t *testing.T) {
	cfg := UplinkConfig{URL: "https://registry.example.com/"}
	assert.Equal(t, "https://registry.example.com", cfg.normalizedURL())

	cfg = UplinkConfig{URL: "https://registry.example.com"}
	assert.Equal(t, "https://registry.example.com", cfg.normalizedURL())
}

func TestUplinkConfigValidate(t *testing.T) {
	t.Run("defaults max_fails and socket limits", func(t *testing.T) {
		cfg, err := UplinkConfig{URL: "https://registry.example.com"}.validate()
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.MaxFails)
		assert.Equal(t, 40, cfg.AgentOptions.MaxSockets)
		assert.Equal(t, 10, cfg.AgentOptions.MaxFreeSockets)
	})

	t.Run("preserves explicit values", func(t *testing.T) {
		cfg, err := UplinkConfig{URL: "https://registry.example.com", MaxFails: 5}.validate()
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.MaxFails)
	})

	t.Run("rejects negative intervals", func(t *testing.T) {
		_, err := UplinkConfig{URL: "https://registry.example.com", Timeout: -1}.validate()
		require.Error(t, err)
		var uplinkErr *Error
		require.ErrorAs(t, err, &uplinkErr)
		assert.Equal(t, BadInterval, uplinkErr.Kind)
	})
}
