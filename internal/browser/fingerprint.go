package browser

import (
	"fmt"
	"strings"
)

// Fingerprint identifies an anchor by its attributes instead of its index,
// so it can be located again after navigation or DOM changes.
type Fingerprint struct {
	Href  string `json:"href"`
	Text  string `json:"text"`
	ID    string `json:"id"`
	Class string `json:"class"`

	// Occurrence counts earlier anchors with the same attributes, which
	// disambiguates repeated identical links.
	Occurrence int `json:"occurrence"`
}

// Key returns a printable form used in logs and link records.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", f.Href, f.Text, f.ID, f.Class, f.Occurrence)
}

// Anchor is an a[href] element as reported by the driver.
type Anchor struct {
	Href  string `json:"href"`
	Text  string `json:"text"`
	ID    string `json:"id"`
	Class string `json:"class"`
}

// Fingerprints assigns fingerprints to anchors in document order.
func Fingerprints(anchors []Anchor) []Fingerprint {
	seen := make(map[Fingerprint]int, len(anchors))
	out := make([]Fingerprint, len(anchors))
	for i, a := range anchors {
		base := Fingerprint{
			Href:  a.Href,
			Text:  collapseSpace(a.Text),
			ID:    a.ID,
			Class: a.Class,
		}
		fp := base
		fp.Occurrence = seen[base]
		seen[base]++
		out[i] = fp
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
