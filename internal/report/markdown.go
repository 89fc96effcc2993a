package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/domaincrawl/internal/model"
)

// MarkdownWriter writes GitHub flavored Markdown diagnostics.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *MarkdownWriter) Write(b *Batch) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, b)
	w.writeSummary(md, b)
	w.writeEntities(md, b)
	w.writeRejections(md, b)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, b *Batch) {
	md.H1("Crawl Diagnostics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", b.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", b.Elapsed.Round(time.Millisecond).String()},
			{"Entities", strconv.Itoa(b.Totals.Entities)},
			{"Pages Recorded", strconv.FormatInt(b.Totals.PagesEmitted, 10)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, b *Batch) {
	t := b.Totals
	md.H2("Links")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Type", "Found", "Followed", "%"},
		Rows: [][]string{
			{"HTML", itoa(t.HTMLLinksFound), itoa(t.HTMLLinksFollowed), pct(t.HTMLLinksFollowed, t.HTMLLinksFound)},
			{"JavaScript", itoa(t.ScriptLinksFound), itoa(t.ScriptLinksClicked), pct(t.ScriptLinksClicked, t.ScriptLinksFound)},
			{"**Total**", "**" + itoa(t.LinksFound) + "**", "**" + itoa(t.LinksFollowed) + "**", pct(t.LinksFollowed, t.LinksFound)},
		},
	})
	md.PlainText("")

	if t.LinksFound > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Links by Type"),
			piechart.WithShowData(true),
		)
		if t.HTMLLinksFound > 0 {
			chart.LabelAndIntValue("HTML", uint64(t.HTMLLinksFound)) //nolint:gosec // counters are never negative
		}
		if t.ScriptLinksFound > 0 {
			chart.LabelAndIntValue("JavaScript", uint64(t.ScriptLinksFound)) //nolint:gosec // counters are never negative
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case t.FailedEntities > 0:
		md.Warningf("%d of %d entities were aborted. See the table below for the errors.", t.FailedEntities, t.Entities)
	case t.PagesFailed > 0 || t.DocumentsFailed > 0:
		md.Importantf("%d pages and %d documents could not be fetched or extracted.", t.PagesFailed, t.DocumentsFailed)
	default:
		md.Tip("Every entity was crawled without errors.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeEntities(md *markdown.Markdown, b *Batch) {
	md.H2("Entities")
	md.PlainText("")
	if len(b.Runs) == 0 {
		md.PlainText("No entities were crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(b.Runs))
	for i, d := range b.Runs {
		status := "✅"
		if d.Error != "" {
			status = "❌ " + truncateString(d.Error, 40)
		}
		rows[i] = []string{
			"`" + d.EntityID + "`",
			d.Domain,
			d.Mode,
			itoa(d.PagesEmitted),
			itoa(d.LinksFound()),
			pct(d.LinksFollowed(), d.LinksFound()),
			itoa(d.DocumentsExtracted),
			d.Elapsed.Round(time.Millisecond).String(),
			status,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Entity", "Domain", "Mode", "Pages", "Links", "Followed", "Documents", "Elapsed", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeRejections(md *markdown.Markdown, b *Batch) {
	if b.Totals.LinksRejected == 0 {
		return
	}

	var r model.Diagnostics
	for _, d := range b.Runs {
		r.RejectedMalformed += d.RejectedMalformed
		r.RejectedScheme += d.RejectedScheme
		r.RejectedOutOfScope += d.RejectedOutOfScope
		r.RejectedExtension += d.RejectedExtension
		r.RejectedPattern += d.RejectedPattern
	}

	md.H2("Rejected Links")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Reason", "Count"},
		Rows: [][]string{
			{string(model.ReasonOutOfScope), itoa(r.RejectedOutOfScope)},
			{string(model.ReasonScheme), itoa(r.RejectedScheme)},
			{string(model.ReasonDeniedExtension), itoa(r.RejectedExtension)},
			{string(model.ReasonPattern), itoa(r.RejectedPattern)},
			{string(model.ReasonMalformed), itoa(r.RejectedMalformed)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Generated by domaincrawl*")
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// truncateString shortens s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
