package textnorm

import "strings"

// StripBraces replaces every outermost balanced {...} span in s with a
// single space. Unmatched braces are left in place.
//
// The scan is a single pass with an explicit stack of open positions, so it
// runs in linear time for any nesting depth.
func StripBraces(s string) string {
	type span struct{ start, end int }

	var open []int
	var spans []span
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			open = append(open, i)
		case '}':
			if len(open) == 0 {
				continue
			}
			start := open[len(open)-1]
			open = open[:len(open)-1]
			// Spans closed earlier inside this one are swallowed by it.
			for len(spans) > 0 && spans[len(spans)-1].start > start {
				spans = spans[:len(spans)-1]
			}
			spans = append(spans, span{start: start, end: i + 1})
		}
	}
	if len(spans) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	prev := 0
	for _, sp := range spans {
		b.WriteString(s[prev:sp.start])
		b.WriteByte(' ')
		prev = sp.end
	}
	b.WriteString(s[prev:])
	return b.String()
}
