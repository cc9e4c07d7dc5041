package collutil

import (
	"strconv"
	"strings"
)

// Range is an inclusive range of zero-based entry numbers. Lo > Hi denotes
// an empty range.
type Range struct {
	Lo, Hi int64
}

// ParseRanges parses a comma-separated list of one-based event numbers and
// ranges, e.g. "5-13,30,60-90". Each range is clamped to [1, nevts] and
// shifted to zero-based entry numbers. Unparsable numbers read as 0.
func ParseRanges(s string, nevts int64) []Range {
	var result []Range
	for _, item := range strings.Split(s, ",") {
		var lo, hi int64
		if a, b, ok := strings.Cut(item, "-"); ok {
			lo, hi = leadingInt(a), leadingInt(b)
		} else {
			lo = leadingInt(item)
			hi = lo
		}
		lo = max(lo, 1)
		hi = min(hi, nevts)
		result = append(result, Range{lo - 1, hi - 1})
	}
	return result
}

// leadingInt parses the longest numeric prefix of s, truncating any
// fraction.
func leadingInt(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
