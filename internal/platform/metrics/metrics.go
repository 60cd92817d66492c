package metrics

import (
	"sync/atomic"
	"time"
)

// Collector keeps process-wide counters exposed on the metrics endpoint.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	notificationsSent    uint64
	notificationsDropped uint64
	jobsFailed           uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordNotification counts a notification that was delivered or dropped.
func (c *Collector) RecordNotification(delivered bool) {
	if delivered {
		atomic.AddUint64(&c.notificationsSent, 1)
		return
	}
	atomic.AddUint64(&c.notificationsDropped, 1)
}

func (c *Collector) RecordJobFailure() {
	atomic.AddUint64(&c.jobsFailed, 1)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":             total,
		"errorsTotal":               atomic.LoadUint64(&c.errorRequests),
		"rateLimitedTotal":          atomic.LoadUint64(&c.rateLimited),
		"avgDurationMs":             avg,
		"totalDurationMs":           totalMs,
		"notificationsSentTotal":    atomic.LoadUint64(&c.notificationsSent),
		"notificationsDroppedTotal": atomic.LoadUint64(&c.notificationsDropped),
		"jobsFailedTotal":           atomic.LoadUint64(&c.jobsFailed),
	}
}
