package concepts

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// stripFences removes a surrounding markdown code block, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// decodeArray decodes a JSON array from model output, retrying on the outermost [...] slice
// when the model wrapped the array in prose.
func decodeArray(raw string, out any) bool {
	s := stripFences(raw)
	if json.Unmarshal([]byte(s), out) == nil {
		return true
	}
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(s[start:end+1]), out) == nil
}

// flexNumber accepts 0.8, "0.8", "85%", "Class 10" and "2:30" (as seconds).
type flexNumber struct {
	Value float64
	Valid bool
}

var leadingNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		f.Value, f.Valid = n, true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	f.Value, f.Valid = parseLooseNumber(s)
	return nil
}

// unitConfidence maps a model confidence onto [0,1]. Answers in (1,100] are read
// as percentages; anything else outside [0,1] is rejected.
func unitConfidence(v float64) (float64, bool) {
	switch {
	case v >= 0 && v <= 1:
		return v, true
	case v > 1 && v <= 100:
		return v / 100, true
	default:
		return 0, false
	}
}

func parseLooseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if mm, ss, ok := strings.Cut(s, ":"); ok {
		m, err1 := strconv.ParseFloat(strings.TrimSpace(mm), 64)
		sec, err2 := strconv.ParseFloat(strings.TrimSpace(ss), 64)
		if err1 == nil && err2 == nil {
			return m*60 + sec, true
		}
	}
	if strings.HasSuffix(s, "%") {
		if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64); err == nil {
			return v / 100, true
		}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if m := leadingNumber.FindString(s); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// flexStrings accepts either a JSON string array or a comma separated string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		*f = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = splitList(s)
	}
	return nil
}

// flexString accepts strings and numbers (chapter "3" vs 3).
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.NewReplacer(`"`, "", "'", "").Replace(p))
		p = strings.TrimSpace(strings.TrimLeft(p, "-*•[]"))
		p = strings.TrimSpace(strings.TrimRight(p, "]"))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var bullet = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)])\s*`)

// trimBullet strips list markers and markdown emphasis from the start of a line.
func trimBullet(line string) string {
	line = bullet.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}
