package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// inlineTags are formatting elements whose literal tags are removed when they
// appear as text rather than markup.
var inlineTags = []string{
	"b", "big", "i", "small", "tt", "abbr", "acronym", "cite", "dfn",
	"em", "kbd", "strong", "samp", "var", "bdo", "map", "object", "q",
	"span", "sub", "sup",
}

// droppedElements never contribute visible text.
var droppedElements = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Title:    true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Template: true,
	atom.Noscript: true,
}

var (
	inlineTagReplacer = newInlineTagReplacer()
	horizontalRun     = regexp.MustCompile(`[ \t|]+`)
	verticalRun       = regexp.MustCompile(`[\n\r\f\v]+`)
)

func newInlineTagReplacer() *strings.Replacer {
	pairs := make([]string, 0, len(inlineTags)*4)
	for _, tag := range inlineTags {
		pairs = append(pairs, "<"+tag+">", "", "</"+tag+">", "")
	}
	return strings.NewReplacer(pairs...)
}

// Normalizer converts page bodies to plain text.
// The zero value is not usable; create one with New.
type Normalizer struct {
	// fold applies NFKD before the ASCII filter so accented letters keep
	// their base character.
	fold bool
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithCompatibilityFolding decomposes characters (NFKD) before non-ASCII code
// points are dropped, so "café" becomes "cafe" instead of "caf".
func WithCompatibilityFolding() Option {
	return func(n *Normalizer) {
		n.fold = true
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = New()

// Normalize converts body with the default settings.
func Normalize(body []byte) string {
	return defaultNormalizer.Normalize(body)
}

// Normalize returns the readable text of body.
// Normalize(Normalize(x)) == Normalize(x) for every input.
func (n *Normalizer) Normalize(body []byte) string {
	out := n.pass(string(body))
	// Every pass that changes its input either shortens it or replaces a
	// whitespace character with its canonical form, so this converges.
	for range len(out) + 1 {
		next := n.pass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

// pass runs the seven normalization steps once.
func (n *Normalizer) pass(s string) string {
	s = visibleText(s)
	s = stripInlineTags(s)
	if n.fold {
		s = norm.NFKD.String(s)
	}
	s = asciiOnly(s)
	s = collapse(s)
	s = collapse(StripBraces(s))
	return strings.TrimSpace(s)
}

// visibleText parses s as HTML and joins its visible text nodes.
func visibleText(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.ElementNode:
			if droppedElements[node.DataAtom] {
				return
			}
		case html.TextNode:
			if text := strings.TrimSpace(node.Data); text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
			return
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return b.String()
}

// stripInlineTags removes literal inline tags until none are left, so
// "<<b>b>" cannot reassemble into a new tag.
func stripInlineTags(s string) string {
	for {
		next := inlineTagReplacer.Replace(s)
		if next == s {
			return s
		}
		s = next
	}
}

// asciiOnly drops every rune outside the 7-bit range, including the
// replacement rune produced for invalid UTF-8.
func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0x7f {
			return -1
		}
		return r
	}, s)
}

// collapse squeezes horizontal runs to one space and line-break runs to
// one newline.
func collapse(s string) string {
	s = horizontalRun.ReplaceAllString(s, " ")
	return verticalRun.ReplaceAllString(s, "\n")
}
