package fact

import (
	"strconv"
	"strings"
)

// Controlled vocabulary terms that chart as words but score numerically.
// "Unable to Assess" charts as the not-documented sentinel.
var vocabScores = map[string]float64{
	"none":             0,
	"mild":             1,
	"moderate":         5,
	"severe":           7,
	"unable to assess": 11,
}

// decodeValueString decodes a charted value that may be a plain numeric
// string or a controlled vocabulary term. ok is false when the value cannot
// be decoded; callers treat that as "no value", never as an error.
func decodeValueString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if v, ok := vocabScores[strings.ToLower(s)]; ok {
		return v, true
	}
	return 0, false
}
