package orchestrate

import (
	"math"

	"github.com/ppiankov/claimcheck/internal/jsonx"
	"github.com/ppiankov/claimcheck/internal/model"
)

// Confidence converts the agent's confidence to a 0-100 percentage. Values
// up to 1 are fractions, larger values are already percentages. Anything
// non-numeric yields model.DefaultConfidence.
func Confidence(raw any) int {
	f, ok := jsonx.Number(raw)
	if !ok {
		return model.DefaultConfidence
	}
	if f <= 1 {
		f *= 100
	}
	pct := int(math.Floor(f + 0.5))
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
