// Package reading interprets decoded records as temperature readings.
package reading

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Reading is a single temperature sample.
type Reading struct {
	TempC float64
	TempF float64
	// PH is the optional pH value reported alongside the temperature.
	PH *float64
	// Time is when the sample was taken. It is the board's own timestamp if
	// it sent one, otherwise the time the record was parsed.
	Time time.Time
}

// numberPrefix matches the leading decimal number of a record such as
// "23.50 C".
var numberPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Parse parses text, which is either a JSON object with a numeric tempC field
// or text starting with a number in degrees Celsius. ok is false if text is
// neither. Other JSON fields are used when they make sense and ignored
// otherwise.
func Parse(text string, now time.Time) (r Reading, ok bool) {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(text), &fields); err == nil {
			return fromJSON(fields, now)
		}
	}

	c, ok := parsePrefix(text)
	if !ok {
		return Reading{}, false
	}

	return Reading{
		TempC: round2(c),
		TempF: round2(CelsiusToFahrenheit(c)),
		Time:  now,
	}, true
}

func parsePrefix(text string) (float64, bool) {
	m := numberPrefix.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func fromJSON(fields map[string]any, now time.Time) (Reading, bool) {
	tempC, ok := fields["tempC"].(float64)
	if !ok {
		return Reading{}, false
	}

	r := Reading{
		TempC: tempC,
		TempF: round2(CelsiusToFahrenheit(tempC)),
		Time:  now,
	}

	if tempF, ok := fields["tempF"].(float64); ok {
		r.TempF = round2(tempF)
	}

	if ph, ok := toNumber(fields["ph"]); ok {
		r.PH = &ph
	}

	// A zero or non-numeric timestamp means the board has no clock.
	if ts, ok := fields["ts"].(float64); ok && ts != 0 {
		r.Time = time.UnixMilli(int64(ts))
	}

	return r, true
}

// toNumber converts numbers and numeric strings.
func toNumber(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// CelsiusToFahrenheit converts a temperature in degrees Celsius.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
