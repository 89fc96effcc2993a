package model

import (
	"sync/atomic"
	"time"
)

// RejectReason explains why a discovered link was not followed.
type RejectReason string

// Rejection reasons recorded by the link classifier.
const (
	ReasonNone            RejectReason = ""
	ReasonMalformed       RejectReason = "malformed"
	ReasonScheme          RejectReason = "scheme"
	ReasonOutOfScope      RejectReason = "out-of-scope"
	ReasonDeniedExtension RejectReason = "denied-extension"
	ReasonPattern         RejectReason = "pattern"
)

// Stats holds the counters of one crawl run.
// All fields are updated atomically so fetch workers, document
// extraction goroutines and the coordinator can share one instance.
type Stats struct {
	HTMLLinksFound      atomic.Int64
	HTMLLinksFollowed   atomic.Int64
	ScriptLinksFound    atomic.Int64
	ScriptLinksClicked  atomic.Int64
	ScriptClickFailures atomic.Int64
	DocumentLinksFound  atomic.Int64

	RejectedMalformed  atomic.Int64
	RejectedScheme     atomic.Int64
	RejectedOutOfScope atomic.Int64
	RejectedExtension  atomic.Int64
	RejectedPattern    atomic.Int64

	PagesEmitted atomic.Int64
	PagesFailed  atomic.Int64
	PagesSkipped atomic.Int64
	PagesDropped atomic.Int64

	DocumentsExtracted atomic.Int64
	DocumentsFailed    atomic.Int64
}

// Reject increments the counter matching reason.
func (s *Stats) Reject(reason RejectReason) {
	switch reason {
	case ReasonMalformed:
		s.RejectedMalformed.Add(1)
	case ReasonScheme:
		s.RejectedScheme.Add(1)
	case ReasonOutOfScope:
		s.RejectedOutOfScope.Add(1)
	case ReasonDeniedExtension:
		s.RejectedExtension.Add(1)
	case ReasonPattern:
		s.RejectedPattern.Add(1)
	case ReasonNone:
	}
}

// Diagnostics is a point-in-time copy of a run's counters plus timing.
// It is what reports and the database consume.
type Diagnostics struct {
	EntityID  string        `json:"entityId"`
	Domain    string        `json:"domain"`
	SeedURL   string        `json:"seedURL"`
	Mode      string        `json:"mode"`
	StartedAt time.Time     `json:"startedAt"`
	Elapsed   time.Duration `json:"elapsed"`
	Error     string        `json:"error,omitempty"`

	HTMLLinksFound      int64 `json:"htmlLinksFound"`
	HTMLLinksFollowed   int64 `json:"htmlLinksFollowed"`
	ScriptLinksFound    int64 `json:"scriptLinksFound"`
	ScriptLinksClicked  int64 `json:"scriptLinksClicked"`
	ScriptClickFailures int64 `json:"scriptClickFailures"`
	DocumentLinksFound  int64 `json:"documentLinksFound"`

	RejectedMalformed  int64 `json:"rejectedMalformed"`
	RejectedScheme     int64 `json:"rejectedScheme"`
	RejectedOutOfScope int64 `json:"rejectedOutOfScope"`
	RejectedExtension  int64 `json:"rejectedExtension"`
	RejectedPattern    int64 `json:"rejectedPattern"`

	PagesEmitted int64 `json:"pagesEmitted"`
	PagesFailed  int64 `json:"pagesFailed"`
	PagesSkipped int64 `json:"pagesSkipped"`
	PagesDropped int64 `json:"pagesDropped"`

	DocumentsExtracted int64 `json:"documentsExtracted"`
	DocumentsFailed    int64 `json:"documentsFailed"`
}

// Snapshot copies the current counter values.
func (s *Stats) Snapshot() Diagnostics {
	return Diagnostics{
		HTMLLinksFound:      s.HTMLLinksFound.Load(),
		HTMLLinksFollowed:   s.HTMLLinksFollowed.Load(),
		ScriptLinksFound:    s.ScriptLinksFound.Load(),
		ScriptLinksClicked:  s.ScriptLinksClicked.Load(),
		ScriptClickFailures: s.ScriptClickFailures.Load(),
		DocumentLinksFound:  s.DocumentLinksFound.Load(),
		RejectedMalformed:   s.RejectedMalformed.Load(),
		RejectedScheme:      s.RejectedScheme.Load(),
		RejectedOutOfScope:  s.RejectedOutOfScope.Load(),
		RejectedExtension:   s.RejectedExtension.Load(),
		RejectedPattern:     s.RejectedPattern.Load(),
		PagesEmitted:        s.PagesEmitted.Load(),
		PagesFailed:         s.PagesFailed.Load(),
		PagesSkipped:        s.PagesSkipped.Load(),
		PagesDropped:        s.PagesDropped.Load(),
		DocumentsExtracted:  s.DocumentsExtracted.Load(),
		DocumentsFailed:     s.DocumentsFailed.Load(),
	}
}

// LinksFound returns the number of followable links discovered.
func (d Diagnostics) LinksFound() int64 {
	return d.HTMLLinksFound + d.ScriptLinksFound
}

// LinksFollowed returns the number of links fetched or clicked.
func (d Diagnostics) LinksFollowed() int64 {
	return d.HTMLLinksFollowed + d.ScriptLinksClicked
}

// RejectedTotal returns the number of links dropped by the classifier.
func (d Diagnostics) RejectedTotal() int64 {
	return d.RejectedMalformed + d.RejectedScheme + d.RejectedOutOfScope +
		d.RejectedExtension + d.RejectedPattern
}

// Percent returns part as a percentage of total, or 0 when total is 0.
func Percent(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
