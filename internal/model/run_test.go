package model

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	records []*PageRecord
	err     error
}

func (m *memorySink) Emit(_ context.Context, rec *PageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func TestCrawlRun(t *testing.T) {
	t.Parallel()

	seed := Seed{EntityID: "42", URL: "http://www.example.org/", Domain: "example.org"}

	t.Run("emits into sink and counts", func(t *testing.T) {
		t.Parallel()

		sink := &memorySink{}
		run := NewCrawlRun(seed, sink)

		require.NoError(t, run.Emit(context.Background(), &PageRecord{URL: seed.URL, EntityID: "42"}))
		assert.Len(t, sink.records, 1)
		assert.Equal(t, int64(1), run.Stats.PagesEmitted.Load())
	})

	t.Run("sink error is returned and not counted", func(t *testing.T) {
		t.Parallel()

		sink := &memorySink{err: errors.New("disk full")}
		run := NewCrawlRun(seed, sink)

		require.Error(t, run.Emit(context.Background(), &PageRecord{}))
		assert.Equal(t, int64(0), run.Stats.PagesEmitted.Load())
	})

	t.Run("emit after finish fails", func(t *testing.T) {
		t.Parallel()

		sink := &memorySink{}
		run := NewCrawlRun(seed, sink)
		run.Finish()
		run.Finish()

		err := run.Emit(context.Background(), &PageRecord{})
		assert.ErrorIs(t, err, ErrRunClosed)
		assert.Empty(t, sink.records)
		assert.False(t, run.FinishedAt.IsZero())
	})

	t.Run("diagnostics carry identity and error", func(t *testing.T) {
		t.Parallel()

		run := NewCrawlRun(seed, nil)
		run.Stats.HTMLLinksFound.Add(4)
		run.Stats.HTMLLinksFollowed.Add(3)
		run.Stats.Reject(ReasonOutOfScope)
		run.Fail(errors.New("browser crashed"))
		run.Finish()

		d := run.Diagnostics()
		assert.Equal(t, "42", d.EntityID)
		assert.Equal(t, "example.org", d.Domain)
		assert.Equal(t, "browser crashed", d.Error)
		assert.Equal(t, int64(4), d.LinksFound())
		assert.Equal(t, int64(3), d.LinksFollowed())
		assert.Equal(t, int64(1), d.RejectedTotal())
		assert.InDelta(t, 75.0, Percent(d.LinksFollowed(), d.LinksFound()), 0.001)
	})
}

func TestPercent(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Percent(3, 0))
	assert.InDelta(t, 50.0, Percent(1, 2), 0.001)
}
