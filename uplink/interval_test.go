package uplink

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Interval
		wantErr bool
	}{
		{name: "bare milliseconds", raw: "1500", want: 1500},
		{name: "seconds", raw: "30s", want: 30_000},
		{name: "minutes", raw: "2m", want: 120_000},
		{name: "hours", raw: "1h", want: 3_600_000},
		{name: "days", raw: "2d", want: 172_800_000},
		{name: "weeks", raw: "1w", want: 604_800_000},
		{name: "fractional seconds", raw: "1.5s", want: 1500},
		{name: "unrecognised unit", raw: "5x", wantErr: true},
		{name: "garbage", raw: "not-a-duration", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInterval(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				var uplinkErr *Error
				require.ErrorAs(t, err, &uplinkErr)
				assert.Equal(t, BadInterval, uplinkErr.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntervalUnmarshalJSON(t *testing.T) {
	var iv Interval
	require.NoError(t, json.Unmarshal([]byte(`"2m"`), &iv))
	assert.Equal(t, Interval(120_000), iv)

	require.NoError(t, json.Unmarshal([]byte(`5000`), &iv))
	assert.Equal(t, Interval(5000), iv)

	err := json.Unmarshal([]byte(`"nope"`), &iv)
	require.Error(t, err)
}
