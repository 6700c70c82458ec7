package oracle

import (
	"encoding/json"
	"strings"

	"recibo/pkg/errors"
)

// verdictPayload mirrors the JSON shape demanded by the prompt.
type verdictPayload struct {
	Aprovado       bool    `json:"aprovado"`
	NomeEncontrado *string `json:"nomeEncontrado"`
	Valor          *string `json:"valor"`
}

// parseVerdict recovers a Verdict from whatever the oracle actually sent.
// Two layers: strip fenced-code wrapping and parse; failing that, scan for
// the first balanced {...} substring and parse that. Anything else is
// ErrOracleUnparsable, which callers must keep distinct from a negative
// verdict.
func parseVerdict(content string) (Verdict, error) {
	cleaned := stripFences(content)

	var payload verdictPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		obj, ok := firstJSONObject(cleaned)
		if !ok {
			return Verdict{}, errors.ErrOracleUnparsable.WithDetail("response_prefix", prefix(content, 200))
		}
		if err := json.Unmarshal([]byte(obj), &payload); err != nil {
			return Verdict{}, errors.Wrap(err, errors.ErrOracleUnparsable)
		}
	}

	verdict := Verdict{Approved: payload.Aprovado}
	if verdict.Approved && payload.NomeEncontrado != nil {
		verdict.MatchedName = strings.TrimSpace(*payload.NomeEncontrado)
	}
	return verdict, nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// firstJSONObject returns the first balanced top-level {...} substring,
// tracking string literals so braces inside values do not confuse the scan.
func firstJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
