package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/nao1215/domaincrawl/internal/domain"
)

// Throttle limits requests per registrable domain.
// One Throttle is shared by every seed and by document extraction, so a site
// never sees more than perDomain concurrent requests from this process.
type Throttle struct {
	perDomain int64
	delay     time.Duration

	mu    sync.Mutex
	slots map[string]*domainSlot
}

type domainSlot struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewThrottle allows perDomain concurrent requests per domain and starts
// at most one request per delay. Values below 1 for perDomain mean 1;
// a zero delay disables spacing.
func NewThrottle(perDomain int, delay time.Duration) *Throttle {
	if perDomain < 1 {
		perDomain = 1
	}
	return &Throttle{
		perDomain: int64(perDomain),
		delay:     delay,
		slots:     make(map[string]*domainSlot),
	}
}

// Acquire blocks until a request to rawURL may start. The returned function
// must be called when the request finishes.
func (t *Throttle) Acquire(ctx context.Context, rawURL string) (func(), error) {
	if t == nil {
		return func() {}, nil
	}

	slot := t.slot(throttleKey(rawURL))
	if err := slot.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if slot.limiter != nil {
		if err := slot.limiter.Wait(ctx); err != nil {
			slot.sem.Release(1)
			return nil, err
		}
	}
	return func() { slot.sem.Release(1) }, nil
}

func (t *Throttle) slot(key string) *domainSlot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.slots[key]; ok {
		return s
	}
	s := &domainSlot{sem: semaphore.NewWeighted(t.perDomain)}
	if t.delay > 0 {
		s.limiter = rate.NewLimiter(rate.Every(t.delay), 1)
	}
	t.slots[key] = s
	return s
}

// throttleKey groups URLs by registrable domain, falling back to the raw
// string for URLs the resolver rejects.
func throttleKey(rawURL string) string {
	if d, err := domain.Resolve(rawURL); err == nil {
		return d
	}
	return rawURL
}
