package reading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.UnixMilli(1700000000000)

func TestParseNumber(t *testing.T) {
	r, ok := Parse("23.5", now)
	require.True(t, ok)
	assert.Equal(t, 23.5, r.TempC)
	assert.Equal(t, 74.3, r.TempF)
	assert.Nil(t, r.PH)
	assert.Equal(t, now, r.Time)
}

func TestParseRounds(t *testing.T) {
	r, ok := Parse("24.123456", now)
	require.True(t, ok)
	assert.Equal(t, 24.12, r.TempC)
	assert.Equal(t, 75.42, r.TempF)
}

func TestParseJSON(t *testing.T) {
	r, ok := Parse(`{"tempC": 20, "ph": 7.2, "ts": 1600000000000}`, now)
	require.True(t, ok)
	assert.Equal(t, 20.0, r.TempC)
	assert.Equal(t, 68.0, r.TempF)
	require.NotNil(t, r.PH)
	assert.Equal(t, 7.2, *r.PH)
	assert.Equal(t, time.UnixMilli(1600000000000), r.Time)
}

func TestParseJSONKeepsTempF(t *testing.T) {
	r, ok := Parse(`{"tempC": 20, "tempF": 70.556}`, now)
	require.True(t, ok)
	assert.Equal(t, 70.56, r.TempF)
	assert.Equal(t, now, r.Time)
}

func TestParseNumberPrefix(t *testing.T) {
	for text, want := range map[string]float64{
		"23.5 C":   23.5,
		"23.50°C":  23.5,
		"-4.25C":   -4.25,
		".5":       0.5,
		"1e1 deg":  10,
		"  19  ":   19,
		"22.00\t": 22,
	} {
		r, ok := Parse(text, now)
		if assert.True(t, ok, "text %q", text) {
			assert.Equal(t, want, r.TempC, "text %q", text)
		}
	}
}

func TestParseJSONLenientFields(t *testing.T) {
	r, ok := Parse(`{"tempC": 25, "ph": "7.2"}`, now)
	require.True(t, ok)
	require.NotNil(t, r.PH)
	assert.Equal(t, 7.2, *r.PH)

	r, ok = Parse(`{"tempC": 25, "ph": true, "ts": "x"}`, now)
	require.True(t, ok)
	assert.Nil(t, r.PH)
	assert.Equal(t, now, r.Time)

	r, ok = Parse(`{"tempC": 25, "ts": 0}`, now)
	require.True(t, ok)
	assert.Equal(t, now, r.Time)

	r, ok = Parse(`{"tempC": 25, "tempF": "hot"}`, now)
	require.True(t, ok)
	assert.Equal(t, 77.0, r.TempF)
}

func TestParseRejects(t *testing.T) {
	for _, text := range []string{
		"",
		"hola",
		"C 23",
		"NaN",
		"+Inf",
		`{"ph": 7}`,
		`{"tempC": "20"}`,
		`{"tempC": null}`,
	} {
		_, ok := Parse(text, now)
		assert.False(t, ok, "text %q", text)
	}
}
