package evaluator

import (
	"sync"
)

type Metric int

const (
	MetricRequests Metric = iota
	MetricExactHits
	MetricSimilarityHits
	MetricMisses
	MetricErrors
	MetricTimeouts
	MetricRetries
	MetricFallbacks
	MetricEvictions

	metricCount
)

// Recorder receives the counters the dispatcher increments. Inject a
// capturing implementation in tests or NopRecorder when metrics are not
// wanted.
type Recorder interface {
	Inc(metric Metric)
	Add(metric Metric, delta uint64)
}

type NopRecorder struct{}

func (NopRecorder) Inc(Metric)         {}
func (NopRecorder) Add(Metric, uint64) {}

// Counters is the in-process Recorder. Counters start at zero, are never
// persisted, and reset only on explicit operator action.
type Counters struct {
	mu     sync.Mutex
	counts [metricCount]uint64
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) Inc(metric Metric) {
	c.Add(metric, 1)
}

func (c *Counters) Add(metric Metric, delta uint64) {
	if metric < 0 || metric >= metricCount {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[metric] += delta
}

func (c *Counters) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = [metricCount]uint64{}
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests       uint64 `json:"requests"`
	ExactHits      uint64 `json:"exactHits"`
	SimilarityHits uint64 `json:"similarityHits"`
	Misses         uint64 `json:"misses"`
	Errors         uint64 `json:"errors"`
	Timeouts       uint64 `json:"timeouts"`
	Retries        uint64 `json:"retries"`
	Fallbacks      uint64 `json:"fallbacks"`
	Evictions      uint64 `json:"evictions"`
}

func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Requests:       c.counts[MetricRequests],
		ExactHits:      c.counts[MetricExactHits],
		SimilarityHits: c.counts[MetricSimilarityHits],
		Misses:         c.counts[MetricMisses],
		Errors:         c.counts[MetricErrors],
		Timeouts:       c.counts[MetricTimeouts],
		Retries:        c.counts[MetricRetries],
		Fallbacks:      c.counts[MetricFallbacks],
		Evictions:      c.counts[MetricEvictions],
	}
}
