package evdump

import "strings"

// Escape replaces the markup-significant characters of s: '<' becomes
// "&lt;", '>' becomes "&gt;" and '&' becomes "&amp;". The scan resumes after
// each replacement, so one call never touches its own output; escaping
// already-escaped text escapes it again ("&lt;" turns into "&amp;lt;").
func Escape(s string) string {
	i := strings.IndexAny(s, "<>&")
	if i < 0 {
		return s
	}
	var buf strings.Builder
	buf.Grow(len(s) + 8)
	for i >= 0 {
		buf.WriteString(s[:i])
		switch s[i] {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		}
		s = s[i+1:]
		i = strings.IndexAny(s, "<>&")
	}
	buf.WriteString(s)
	return buf.String()
}
