// Package dashboard derives the shopkeeper's queue totals from the live
// job groups. Compute is pure; Engine wraps it with a short-TTL cache so
// frequent dashboard polls stay cheap.
package dashboard

import (
	"context"
	"time"

	"printdesk/backend/internal/cache"
	"printdesk/backend/internal/domain"
)

const statsCacheKey = "printdesk:dashboard:stats"

type Engine struct {
	cache    cache.StatsCache
	cacheTTL time.Duration
}

func NewEngine(cacheStore cache.StatsCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopStatsCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Second
	}
	return &Engine{cache: cacheStore, cacheTTL: cacheTTL}
}

// Compute aggregates dashboard totals from the given job groups. Revenue
// is recomputed live from job prices; after the end-of-day purge the live
// queue is empty and archived revenue lives only in the daily summary.
func Compute(groups []domain.JobGroup, now time.Time) domain.DashboardStats {
	stats := domain.DashboardStats{}
	today := now.Local()
	todayYear, todayMonth, todayDay := today.Date()

	for _, group := range groups {
		created := group.CreatedAt.Local()
		year, month, day := created.Date()
		if year == todayYear && month == todayMonth && day == todayDay {
			stats.TodayOrders++
		}
		for _, job := range group.Jobs {
			stats.TotalJobs++
			stats.TotalRevenueCents += job.PriceCents
			if job.Status == domain.JobStatusQueued {
				stats.PendingJobs++
			}
		}
	}
	return stats
}

// Stats returns cached totals when fresh, otherwise recomputes and caches.
func (e *Engine) Stats(ctx context.Context, groups []domain.JobGroup, now time.Time) domain.DashboardStats {
	if cached, ok, err := e.cache.Get(ctx, statsCacheKey); err == nil && ok {
		return *cached
	}

	stats := Compute(groups, now)
	_ = e.cache.Set(ctx, statsCacheKey, &stats, e.cacheTTL)
	return stats
}

// Invalidate drops the cached totals; called after any mutation that
// changes the queue.
func (e *Engine) Invalidate(ctx context.Context) {
	_ = e.cache.Invalidate(ctx, statsCacheKey)
}
