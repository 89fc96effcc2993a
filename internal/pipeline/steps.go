package pipeline

import (
	"context"
	"fmt"

	"github.com/nao1215/domaincrawl/internal/model"
)

// Crawler crawls one seed. *crawler.Spider and *browser.Session implement it.
type Crawler interface {
	Crawl(ctx context.Context, run *model.CrawlRun) error
}

// CrawlStep runs a Crawler.
type CrawlStep struct {
	name    string
	crawler Crawler
}

// NewCrawlStep returns a step named name that runs c.
func NewCrawlStep(name string, c Crawler) *CrawlStep {
	return &CrawlStep{name: name, crawler: c}
}

// Name implements Step.
func (s *CrawlStep) Name() string {
	return s.name
}

// Do implements Step.
func (s *CrawlStep) Do(ctx context.Context, run *model.CrawlRun) error {
	return s.crawler.Crawl(ctx, run)
}

// ModeStep dispatches to the step registered for run.Mode.
type ModeStep struct {
	steps map[string]Step
}

// NewModeStep returns a ModeStep for the HTTP and browser modes.
// A nil step leaves that mode unsupported.
func NewModeStep(httpStep, browserStep Step) *ModeStep {
	steps := make(map[string]Step, 2)
	if httpStep != nil {
		steps[model.ModeHTTP] = httpStep
	}
	if browserStep != nil {
		steps[model.ModeBrowser] = browserStep
	}
	return &ModeStep{steps: steps}
}

// Name implements Step.
func (s *ModeStep) Name() string {
	return "crawl"
}

// Do implements Step.
func (s *ModeStep) Do(ctx context.Context, run *model.CrawlRun) error {
	step, ok := s.steps[run.Mode]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, run.Mode)
	}
	return step.Do(ctx, run)
}

// RunRecorder persists the diagnostics of a finished run.
// *database.CrawlDB implements it.
type RunRecorder interface {
	SaveRun(ctx context.Context, d model.Diagnostics) error
}
