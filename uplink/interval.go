package uplink

import (
	"encoding/json"
	"regexp"
	"strconv"
)

// Interval is a duration expressed in milliseconds, decodable from either a
// bare integer or an npm-style duration literal such as "2m" or "30s".
type Interval int64

var intervalPattern = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)(ms|s|m|h|d|w|M|y)?$`)

var unitMillis = map[string]int64{
	"ms": 1,
	"s":  1000,
	"m":  60 * 1000,
	"h":  60 * 60 * 1000,
	"d":  24 * 60 * 60 * 1000,
	"w":  7 * 24 * 60 * 60 * 1000,
	"M":  30 * 24 * 60 * 60 * 1000,
	"y":  365 * 24 * 60 * 60 * 1000,
}

// ParseInterval converts a human duration literal into milliseconds. It
// accepts a bare integer (already milliseconds) or "<number><unit>" with
// units ms, s, m, h, d, w, M, y. It fails with Kind BadInterval on any
// other input.
func ParseInterval(raw string) (Interval, error) {
	m := intervalPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, newError("interval", BadInterval)
	}

	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, wrapError("interval", BadInterval, err)
	}

	unit := m[2]
	if unit == "" {
		return Interval(int64(n)), nil
	}
	factor, ok := unitMillis[unit]
	if !ok {
		return 0, newError("interval", BadInterval)
	}
	return Interval(int64(n * float64(factor))), nil
}

// UnmarshalJSON implements json.Unmarshaler, accepting either a JSON number
// (milliseconds) or a JSON string duration literal.
func (iv *Interval) UnmarshalJSON(data []byte) error {
	var asNumber int64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*iv = Interval(asNumber)
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return newError("interval", BadInterval)
	}
	parsed, err := ParseInterval(asString)
	if err != nil {
		return err
	}
	*iv = parsed
	return nil
}

// MarshalJSON implements json.Marshaler, always emitting a plain number of
// milliseconds.
func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(iv))
}
