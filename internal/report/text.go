package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/domaincrawl/internal/model"
)

// TextWriter writes the plain diagnostics file.
type TextWriter struct {
	baseWriter
}

// NewTextWriter creates a TextWriter.
func NewTextWriter(output io.Writer) *TextWriter {
	return &TextWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *TextWriter) Write(b *Batch) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Program was run at %s\n", b.StartedAt.Format("2006-01-02 15:04:05"))
	sb.WriteString("\n")

	for _, d := range b.Runs {
		w.writeEntity(&sb, d)
	}

	t := b.Totals
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Total number of links: %d\n", t.LinksFound)
	fmt.Fprintf(&sb, "Number of links followed: %d\n", t.LinksFollowed)
	fmt.Fprintf(&sb, "%% of links followed: %s\n", pct(t.LinksFollowed, t.LinksFound))
	fmt.Fprintf(&sb, "Number of HTML links: %d\n", t.HTMLLinksFound)
	fmt.Fprintf(&sb, "%% of HTML links followed: %s\n", pct(t.HTMLLinksFollowed, t.HTMLLinksFound))
	fmt.Fprintf(&sb, "Number of JavaScript links: %d\n", t.ScriptLinksFound)
	fmt.Fprintf(&sb, "%% of JavaScript links clicked: %s\n", pct(t.ScriptLinksClicked, t.ScriptLinksFound))
	fmt.Fprintf(&sb, "Pages recorded: %d (%d failed)\n", t.PagesEmitted, t.PagesFailed)
	fmt.Fprintf(&sb, "Documents extracted: %d (%d failed)\n", t.DocumentsExtracted, t.DocumentsFailed)
	fmt.Fprintf(&sb, "Entities: %d (%d aborted)\n", t.Entities, t.FailedEntities)
	fmt.Fprintf(&sb, "Time taken to crawl all entities: %s\n", b.Elapsed.Round(time.Millisecond))

	return io.WriteString(w.output, sb.String())
}

func (w *TextWriter) writeEntity(sb *strings.Builder, d model.Diagnostics) {
	fmt.Fprintf(sb, "Entity %s had %d links and %d were followed (%s)\n",
		label(d), d.LinksFound(), d.LinksFollowed(), pct(d.LinksFollowed(), d.LinksFound()))
	fmt.Fprintf(sb, "There were %d html links and %d were followed (%s)\n",
		d.HTMLLinksFound, d.HTMLLinksFollowed, pct(d.HTMLLinksFollowed, d.HTMLLinksFound))
	if d.ScriptLinksFound != 0 {
		fmt.Fprintf(sb, "There were %d JavaScript links and %d were clicked (%s)\n",
			d.ScriptLinksFound, d.ScriptLinksClicked, pct(d.ScriptLinksClicked, d.ScriptLinksFound))
	}
	if d.Error != "" {
		fmt.Fprintf(sb, "The crawl was aborted: %s\n", d.Error)
	}
	fmt.Fprintf(sb, "It took %s to crawl this entity\n\n", d.Elapsed.Round(time.Millisecond))
}

// pct formats part/total as a percentage; a zero total gives "0.0%".
func pct(part, total int64) string {
	return fmt.Sprintf("%.1f%%", model.Percent(part, total))
}
