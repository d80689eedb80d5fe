package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abgoyal/smartreader/render"
	"github.com/abgoyal/smartreader/store"
)

const (
	idlePoll          = 5 * time.Second
	gatePollCap       = 30 * time.Second
	stuckCleanupEvery = 60 * time.Second
)

// Pool runs a fixed number of extraction workers, all sharing the domain
// gate and the two global backoff gates.
type Pool struct {
	stories *store.StoryStore
	cache   *store.CacheStore
	usage   *store.UsageStore
	render  *render.Client
	size    int

	domains     *domainGate
	rateLimit   *globalGate
	quota       *globalGate
}

func NewPool(stories *store.StoryStore, cache *store.CacheStore, usage *store.UsageStore, renderClient *render.Client, size int) *Pool {
	if size <= 0 {
		size = 3
	}
	return &Pool{
		stories:   stories,
		cache:     cache,
		usage:     usage,
		render:    renderClient,
		size:      size,
		domains:   newDomainGate(),
		rateLimit: &globalGate{},
		quota:     &globalGate{},
	}
}

// Run runs stuck-job cleanup once, then starts the pool and blocks until ctx
// is cancelled. Worker #1 (index 0) additionally runs stuck-job cleanup after
// idle stretches.
func (p *Pool) Run(ctx context.Context) error {
	if err := p.stories.StuckJobCleanup(ctx); err != nil {
		slog.Error("extraction pool: startup stuck-job cleanup failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		idx := i
		g.Go(func() error {
			p.workerLoop(ctx, idx)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) workerLoop(ctx context.Context, idx int) {
	var idleSince time.Time

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if wait, active := p.rateLimit.active(); active {
			p.sleep(ctx, capDuration(wait, gatePollCap))
			continue
		}
		if wait, active := p.quota.active(); active {
			p.sleep(ctx, capDuration(wait, gatePollCap))
			continue
		}

		job, err := p.stories.ClaimNext(ctx)
		if err != nil {
			slog.Error("extraction pool: claim failed", "error", err)
			p.sleep(ctx, idlePoll)
			continue
		}

		if job == nil {
			if idx == 0 {
				if idleSince.IsZero() {
					idleSince = time.Now()
				} else if time.Since(idleSince) >= stuckCleanupEvery {
					if err := p.stories.StuckJobCleanup(ctx); err != nil {
						slog.Error("extraction pool: idle stuck-job cleanup failed", "error", err)
					}
					idleSince = time.Now()
				}
			}
			p.sleep(ctx, idlePoll)
			continue
		}

		idleSince = time.Time{}
		p.process(ctx, job)
	}
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func capDuration(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}

func (p *Pool) process(ctx context.Context, job *store.ClaimedJob) {
	if cached, err := p.cache.Get(ctx, job.URL); err != nil {
		slog.Error("extraction pool: cache lookup failed", "story_id", job.ID, "error", err)
	} else if cached != nil {
		p.finalize(ctx, job, store.FinalizeResult{
			Status:   store.StatusDone,
			Content:  cached.Content,
			Source:   cached.Source,
			BilledMs: 0, // already billed and logged at first fetch
		})
		return
	}

	p.domains.wait(job.Domain)

	result := p.render.Render(ctx, job.URL)
	p.interpret(ctx, job, result)
}

func (p *Pool) interpret(ctx context.Context, job *store.ClaimedJob, result render.Result) {
	switch result.Status {
	case render.StatusDone:
		if err := p.cache.Put(ctx, job.URL, result.Content, "renderer", result.BilledMs); err != nil {
			slog.Error("extraction pool: cache write failed", "story_id", job.ID, "error", err)
		}
		p.finalize(ctx, job, store.FinalizeResult{Status: store.StatusDone, Content: result.Content, Source: "renderer", BilledMs: result.BilledMs})
		p.logUsage(ctx, job, result.BilledMs, "renderer")

	case render.StatusBlocked:
		if job.Attempts >= store.MaxAttempts {
			p.finalize(ctx, job, store.FinalizeResult{Status: store.StatusBlocked, Content: result.Content, Source: "renderer", BilledMs: result.BilledMs})
			if result.BilledMs > 0 {
				p.logUsage(ctx, job, result.BilledMs, "renderer")
			}
		} else {
			p.finalize(ctx, job, store.FinalizeResult{Status: store.StatusRetry, BilledMs: result.BilledMs})
		}

	case render.StatusRateLimited:
		p.rateLimit.set(time.Now().Add(result.RetryAfter))
		p.finalize(ctx, job, store.FinalizeResult{Status: store.StatusRetry, BilledMs: result.BilledMs})

	case render.StatusQuotaExceeded:
		p.quota.set(nextUTCMidnight(time.Now()))
		p.finalize(ctx, job, store.FinalizeResult{Status: store.StatusRetry, BilledMs: result.BilledMs})

	case render.StatusTimeout, render.StatusFailed:
		if job.Attempts >= store.MaxAttempts {
			p.finalize(ctx, job, store.FinalizeResult{Status: store.StatusFailed, BilledMs: result.BilledMs})
		} else {
			p.finalize(ctx, job, store.FinalizeResult{Status: store.StatusRetry, BilledMs: result.BilledMs})
		}

	default:
		slog.Error("extraction pool: unknown render status", "story_id", job.ID, "status", result.Status)
		p.finalize(ctx, job, store.FinalizeResult{Status: store.StatusRetry})
	}
}

func (p *Pool) finalize(ctx context.Context, job *store.ClaimedJob, r store.FinalizeResult) {
	if err := p.stories.Finalize(ctx, job.ID, r); err != nil {
		slog.Error("extraction pool: finalize failed", "story_id", job.ID, "status", r.Status, "error", err)
	}
}

func (p *Pool) logUsage(ctx context.Context, job *store.ClaimedJob, billedMs int64, source string) {
	id := job.ID
	url := job.URL
	if err := p.usage.Append(ctx, &id, &url, billedMs, source); err != nil {
		slog.Error("extraction pool: usage log append failed", "story_id", job.ID, "error", err)
	}
}
