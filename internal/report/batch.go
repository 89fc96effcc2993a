package report

import (
	"time"

	"github.com/nao1215/domaincrawl/internal/model"
)

// Batch is the input of every report: the diagnostics of each seed of one
// crawl invocation.
type Batch struct {
	StartedAt time.Time           `json:"startedAt"`
	Elapsed   time.Duration       `json:"elapsed"`
	Runs      []model.Diagnostics `json:"runs"`
	Totals    Totals              `json:"totals"`
}

// Totals sums the counters of all runs.
type Totals struct {
	Entities           int   `json:"entities"`
	FailedEntities     int   `json:"failedEntities"`
	LinksFound         int64 `json:"linksFound"`
	LinksFollowed      int64 `json:"linksFollowed"`
	HTMLLinksFound     int64 `json:"htmlLinksFound"`
	HTMLLinksFollowed  int64 `json:"htmlLinksFollowed"`
	ScriptLinksFound   int64 `json:"scriptLinksFound"`
	ScriptLinksClicked int64 `json:"scriptLinksClicked"`
	LinksRejected      int64 `json:"linksRejected"`
	PagesEmitted       int64 `json:"pagesEmitted"`
	PagesFailed        int64 `json:"pagesFailed"`
	DocumentsExtracted int64 `json:"documentsExtracted"`
	DocumentsFailed    int64 `json:"documentsFailed"`
}

// NewBatch builds a Batch from finished runs. Nil runs are skipped.
func NewBatch(startedAt time.Time, runs []*model.CrawlRun) *Batch {
	b := &Batch{
		StartedAt: startedAt,
		Elapsed:   time.Since(startedAt),
		Runs:      make([]model.Diagnostics, 0, len(runs)),
	}
	for _, r := range runs {
		if r == nil {
			continue
		}
		b.Runs = append(b.Runs, r.Diagnostics())
	}
	b.Totals = sum(b.Runs)
	return b
}

func sum(runs []model.Diagnostics) Totals {
	var t Totals
	for _, d := range runs {
		t.Entities++
		if d.Error != "" {
			t.FailedEntities++
		}
		t.LinksFound += d.LinksFound()
		t.LinksFollowed += d.LinksFollowed()
		t.HTMLLinksFound += d.HTMLLinksFound
		t.HTMLLinksFollowed += d.HTMLLinksFollowed
		t.ScriptLinksFound += d.ScriptLinksFound
		t.ScriptLinksClicked += d.ScriptLinksClicked
		t.LinksRejected += d.RejectedTotal()
		t.PagesEmitted += d.PagesEmitted
		t.PagesFailed += d.PagesFailed
		t.DocumentsExtracted += d.DocumentsExtracted
		t.DocumentsFailed += d.DocumentsFailed
	}
	return t
}

// label names an entity in reports.
func label(d model.Diagnostics) string {
	if d.Domain == "" {
		return d.EntityID
	}
	return d.EntityID + " (" + d.Domain + ")"
}
