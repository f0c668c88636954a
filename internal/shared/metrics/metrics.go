package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	runStartedTotal   atomic.Uint64
	runCompletedTotal atomic.Uint64
	runFailedTotal    atomic.Uint64

	scrapeFallbackTotal atomic.Uint64

	queueJobsReceivedTotal      atomic.Uint64
	queueJobsCompletedTotal     atomic.Uint64
	queueJobsFailedTotal        atomic.Uint64
	queueJobsUnrecoverableTotal atomic.Uint64

	runDuration = newHistogram([]float64{500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000})
)

// IncRunStarted increments the started counter.
func IncRunStarted() {
	runStartedTotal.Add(1)
}

// IncRunCompleted increments the completed counter.
func IncRunCompleted() {
	runCompletedTotal.Add(1)
}

// IncRunFailed increments the failed counter.
func IncRunFailed() {
	runFailedTotal.Add(1)
}

// IncScrapeFallback counts collections that degraded to LLM inference.
func IncScrapeFallback() {
	scrapeFallbackTotal.Add(1)
}

// IncQueueJobsReceived increments the queue jobs received counter.
func IncQueueJobsReceived() {
	queueJobsReceivedTotal.Add(1)
}

// IncQueueJobsCompleted increments the queue jobs completed counter.
func IncQueueJobsCompleted() {
	queueJobsCompletedTotal.Add(1)
}

// IncQueueJobsFailed increments the queue jobs failed counter.
func IncQueueJobsFailed() {
	queueJobsFailedTotal.Add(1)
}

// IncQueueJobsDeletedUnrecoverable counts malformed jobs removed from the queue.
func IncQueueJobsDeletedUnrecoverable() {
	queueJobsUnrecoverableTotal.Add(1)
}

// ObserveRunDurationMs records a full run duration in milliseconds.
func ObserveRunDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	runDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "run_started_total", "Total analysis runs started", runStartedTotal.Load())
	writeCounter(&buf, "run_completed_total", "Total analysis runs completed", runCompletedTotal.Load())
	writeCounter(&buf, "run_failed_total", "Total analysis runs failed", runFailedTotal.Load())
	writeCounter(&buf, "scrape_fallback_total", "Total collections degraded to LLM inference", scrapeFallbackTotal.Load())
	writeCounter(&buf, "queue_jobs_received_total", "Total queue jobs received", queueJobsReceivedTotal.Load())
	writeCounter(&buf, "queue_jobs_completed_total", "Total queue jobs completed", queueJobsCompletedTotal.Load())
	writeCounter(&buf, "queue_jobs_failed_total", "Total queue jobs failed", queueJobsFailedTotal.Load())
	writeCounter(&buf, "queue_jobs_deleted_unrecoverable_total", "Total malformed queue jobs deleted", queueJobsUnrecoverableTotal.Load())
	writeHistogram(&buf, "run_duration_ms", "Analysis run duration in milliseconds", runDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
