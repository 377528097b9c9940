package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sajilotantra/sajilotantra-be/internal/metrics"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
)

// Recorder writes activity logs asynchronously so request latency never
// depends on the audit store. Entries are dropped when the queue is full.
type Recorder struct {
	store   Store
	queue   chan models.ActivityLog
	metrics *metrics.Metrics
}

// NewRecorder creates a Recorder with a queue of the given size.
func NewRecorder(store Store, buffer int, m *metrics.Metrics) *Recorder {
	if buffer < 1 {
		buffer = 1
	}
	return &Recorder{store: store, queue: make(chan models.ActivityLog, buffer), metrics: m}
}

// Record enqueues entry without blocking.
func (r *Recorder) Record(entry models.ActivityLog) {
	select {
	case r.queue <- entry:
	default:
		r.metrics.AuditDropped()
		log.Warn().Str("action", string(entry.Action)).Str("path", metaString(entry.Metadata, "url")).Msg("Activity log queue full, dropping entry")
	}
}

// Run drains the queue until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.queue:
			r.write(ctx, entry)
		case <-ctx.Done():
			r.flush()
			return
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case entry := <-r.queue:
			r.write(ctx, entry)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, entry models.ActivityLog) {
	if err := r.store.Append(ctx, entry); err != nil {
		r.metrics.AuditFailed()
		log.Error().Err(err).Str("action", string(entry.Action)).Msg("Failed to write activity log")
		return
	}
	r.metrics.AuditWritten()
}

func metaString(m models.JSONMap, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
