// Package scoring extracts a numeric score from a rater model's free-text
// answer.
//
// Extraction order:
//  1. With any markdown code fence unwrapped, a JSON object carrying a
//     numeric "score" field. Objects that fail to parse get one repair pass
//     for common model formatting slips.
//  2. Otherwise, the first numeric literal (integer or decimal, optional
//     sign) that starts a token. Digits glued to a word, as in "Act-2" or
//     "gpt4", are not scores.
//  3. Otherwise the answer is unparsable.
//
// Only finite values are ever returned.
package scoring

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Method records which rule produced a score.
type Method string

const (
	MethodJSON         Method = "json"
	MethodJSONRepaired Method = "json_repaired"
	MethodNumeric      Method = "numeric"
)

// Extraction is a successfully extracted score.
type Extraction struct {
	Score  float64
	Method Method
}

var (
	fencePattern   = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)```")
	numberPattern  = regexp.MustCompile(`[-+]?(?:\d+(?:\.\d*)?|\.\d+)`)
	unquotedKeyRex = regexp.MustCompile(`(\{|,)\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
)

// Extract returns the score found in response, or false when the response
// carries none.
func Extract(response string) (Extraction, bool) {
	if score, method, ok := fromJSON(response); ok {
		return Extraction{Score: score, Method: method}, true
	}

	for _, loc := range numberPattern.FindAllStringIndex(response, -1) {
		if gluedToWord(response, loc[0]) {
			continue
		}
		if v, ok := finite(response[loc[0]:loc[1]]); ok {
			return Extraction{Score: v, Method: MethodNumeric}, true
		}
	}
	return Extraction{}, false
}

// gluedToWord reports whether the literal starting at i continues a word
// or a dotted token.
func gluedToWord(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// finite parses lit and rejects NaN and the infinities, which cannot be
// persisted as JSON.
func finite(lit string) (float64, bool) {
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func fromJSON(response string) (float64, Method, bool) {
	candidate := jsonCandidate(response)
	if candidate == "" {
		return 0, "", false
	}
	if v, ok := scoreField(candidate); ok {
		return v, MethodJSON, true
	}
	if repaired := repairJSON(candidate); repaired != candidate {
		if v, ok := scoreField(repaired); ok {
			return v, MethodJSONRepaired, true
		}
	}
	return 0, "", false
}

// jsonCandidate unwraps the first code fence, then trims to the outermost
// braces. It returns "" when there is no object-shaped text.
func jsonCandidate(response string) string {
	body := response
	if m := fencePattern.FindStringSubmatch(response); m != nil {
		body = m[1]
	}
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end < start {
		return ""
	}
	return body[start : end+1]
}

// scoreField decodes obj and returns its "score" when it is a JSON number.
// Numeric strings such as "8" are accepted too.
func scoreField(obj string) (float64, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return 0, false
	}
	raw, ok := fields["score"]
	if !ok {
		return 0, false
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return finite(n.String())
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return finite(strings.TrimSpace(s))
	}
	return 0, false
}

// repairJSON fixes trailing commas, unquoted keys and single quotes.
// Returns the input unchanged when nothing applies.
func repairJSON(s string) string {
	repaired := s
	repaired = strings.ReplaceAll(repaired, ",\n}", "\n}")
	repaired = strings.ReplaceAll(repaired, ",\r\n}", "\r\n}")
	repaired = strings.ReplaceAll(repaired, ", }", " }")
	repaired = strings.ReplaceAll(repaired, ",}", "}")

	repaired = unquotedKeyRex.ReplaceAllString(repaired, `$1"$2":`)

	// Only safe when no double quotes are present at all.
	if !strings.Contains(s, `"`) && strings.Contains(repaired, `'`) {
		repaired = strings.ReplaceAll(repaired, `'`, `"`)
	}
	return strings.TrimSpace(repaired)
}
