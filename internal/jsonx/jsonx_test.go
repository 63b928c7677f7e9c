package jsonx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"zero", 0.0, false},
		{"nan", math.NaN(), false},
		{"number", 7.0, true},
		{"empty string", "", false},
		{"string", "x", true},
		{"empty object", map[string]any{}, true},
		{"empty array", []any{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.v))
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "abc", String("abc"))
	assert.Equal(t, "85", String(85.0))
	assert.Equal(t, "0.85", String(0.85))
	assert.Equal(t, "true", String(true))
	assert.Equal(t, `{"a":1}`, String(map[string]any{"a": 1.0}))
	assert.Equal(t, `["x",2]`, String([]any{"x", 2.0}))
}

func TestFirstString(t *testing.T) {
	m := map[string]any{"short_claim": "", "claim": nil, "text": "fallback"}
	got, ok := FirstString(m, "short_claim", "claim", "text")
	assert.True(t, ok)
	assert.Equal(t, "fallback", got)

	_, ok = FirstString(m, "missing")
	assert.False(t, ok)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "Бо", Truncate("Борщ", 2))
}

func TestLooseEqual(t *testing.T) {
	assert.True(t, LooseEqual(1.0, "1"))
	assert.True(t, LooseEqual("2", 2.0))
	assert.False(t, LooseEqual(1.0, 2.0))
	assert.False(t, LooseEqual(nil, nil))
}

func TestNumber(t *testing.T) {
	f, ok := Number(0.5)
	assert.True(t, ok)
	assert.Equal(t, 0.5, f)

	_, ok = Number("0.5")
	assert.False(t, ok)
	_, ok = Number(math.Inf(1))
	assert.False(t, ok)
}
