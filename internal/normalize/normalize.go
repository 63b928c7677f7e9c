// Package normalize turns the loosely shaped output of the extraction agent
// into a list of well-formed claims.
package normalize

import (
	"strings"

	"github.com/ppiankov/claimcheck/internal/jsonx"
	"github.com/ppiankov/claimcheck/internal/model"
)

const (
	maxRawLen           = 200
	maxFallbackClaimLen = 1000
	maxFallbackExcerpt  = 300
)

// arrayKeys are probed in order for a top-level claim list
var arrayKeys = []string{"claims", "results", "items"}

// probe extracts raw claims from one response shape
type probe func(raw map[string]any) ([]any, bool)

// probes are tried in order; the first match wins
var probes = []probe{
	arrayProbe("claims"),
	arrayProbe("results"),
	arrayProbe("items"),
	textProbe,
}

func arrayProbe(key string) probe {
	return func(raw map[string]any) ([]any, bool) {
		return jsonx.NonEmptyArray(raw[key])
	}
}

// textProbe parses a JSON document embedded as text in output.text or text
func textProbe(raw map[string]any) ([]any, bool) {
	text := embeddedText(raw)
	if text == "" {
		return nil, false
	}
	parsed, err := jsonx.Decode([]byte(text))
	if err != nil {
		return nil, false
	}
	if arr, ok := jsonx.NonEmptyArray(parsed); ok {
		return arr, true
	}
	obj := jsonx.Object(parsed)
	if obj == nil {
		return nil, false
	}
	for _, key := range arrayKeys {
		if arr, ok := jsonx.NonEmptyArray(obj[key]); ok {
			return arr, true
		}
	}
	return []any{obj}, true
}

func embeddedText(raw map[string]any) string {
	var v any
	if output := jsonx.Object(raw["output"]); output != nil && output["text"] != nil {
		v = output["text"]
	} else {
		v = raw["text"]
	}
	return strings.TrimSpace(jsonx.String(v))
}

// Claims normalizes an extraction response. It never returns an empty list:
// when no claim can be recovered the trimmed fallback input becomes the only
// claim. Claims is pure; normalizing the JSON form of its own output yields
// the same claims.
func Claims(raw any, fallback string) []model.ExtractedClaim {
	var items []any
	if obj := jsonx.Object(raw); obj != nil {
		for _, p := range probes {
			if found, ok := p(obj); ok {
				items = found
				break
			}
		}
	}

	if len(items) == 0 {
		return []model.ExtractedClaim{FallbackClaim(fallback)}
	}

	claims := make([]model.ExtractedClaim, 0, len(items))
	for i, item := range items {
		claims = append(claims, Claim(item, i))
	}
	return claims
}

// FallbackClaim wraps the input itself as a single unknown claim
func FallbackClaim(input string) model.ExtractedClaim {
	trimmed := strings.TrimSpace(input)
	return model.ExtractedClaim{
		ID:                  1,
		ShortClaim:          jsonx.Truncate(trimmed, maxFallbackClaimLen),
		Entities:            []string{},
		PossibleDates:       []string{},
		ClaimType:           model.ClaimTypeUnknown,
		OriginalTextExcerpt: jsonx.Truncate(trimmed, maxFallbackExcerpt),
	}
}

// Claim coerces one raw element at zero-based position idx
func Claim(raw any, idx int) model.ExtractedClaim {
	obj := jsonx.Object(raw)
	if obj == nil {
		obj = map[string]any{}
	}
	rawText := jsonx.Truncate(jsonx.String(raw), maxRawLen)

	claim := model.ExtractedClaim{
		ID:            idx + 1,
		Entities:      jsonx.Strings(obj["entities"]),
		PossibleDates: jsonx.Strings(obj["possible_dates"]),
	}
	if id, ok := jsonx.Number(obj["id"]); ok {
		claim.ID = int(id)
	}

	claim.ShortClaim = firstOr(obj, rawText, "short_claim", "claim", "text")
	claim.ClaimType = firstOr(obj, model.ClaimTypeUnknown, "claim_type", "type")
	claim.OriginalTextExcerpt = firstOr(obj, rawText, "original_text_excerpt", "excerpt", "text")
	return claim
}

func firstOr(obj map[string]any, fallback string, keys ...string) string {
	if s, ok := jsonx.FirstString(obj, keys...); ok {
		return s
	}
	return fallback
}

// ClaimChecksByID returns the claim_checks metadata the extractor attached to
// claims in its top-level claims or results list, keyed by the normalized
// claim ids. Ids are compared loosely so 1 matches "1".
func ClaimChecksByID(raw any, claims []model.ExtractedClaim) map[int]*model.ClaimCheck {
	obj := jsonx.Object(raw)
	out := make(map[int]*model.ClaimCheck)
	if obj == nil {
		return out
	}

	for _, c := range claims {
		meta := findByID(obj["claims"], c.ID)
		if meta == nil {
			meta = findByID(obj["results"], c.ID)
		}
		if meta == nil {
			continue
		}
		checks := jsonx.Object(meta["claim_checks"])
		if checks == nil {
			continue
		}
		cc := &model.ClaimCheck{}
		cc.Merge(checks)
		out[c.ID] = cc
	}
	return out
}

func findByID(list any, id int) map[string]any {
	arr, ok := jsonx.Array(list)
	if !ok {
		return nil
	}
	for _, e := range arr {
		obj := jsonx.Object(e)
		if obj != nil && jsonx.LooseEqual(obj["id"], float64(id)) {
			return obj
		}
	}
	return nil
}
