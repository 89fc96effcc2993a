package document

import "strings"

// StripControl removes C0 and C1 control characters from s, keeping
// tab and newline.
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r <= 0x08, r >= 0x0B && r <= 0x1F, r >= 0x7F && r <= 0x9F:
			return -1
		default:
			return r
		}
	}, s)
}
