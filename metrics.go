package telemetry

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the score-emission latency histogram buckets
// in nanoseconds, from 1us to 10s with logarithmic spacing: the time
// the worker spends correlating one event after taking it off its
// staging queue, including appending any resulting score to the ring
// buffer.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks operational statistics for a capture session: events
// observed and scored, events/buffers lost at the OS tracing layer
// (informational only, never fatal), staging-queue drops,
// and confined handler errors.
type Metrics struct {
	PresentsObserved   atomic.Uint64
	LSREventsObserved  atomic.Uint64
	PresentsDiscarded  atomic.Uint64 // final_state != Presented
	EventsLost         atomic.Uint64
	BuffersLost        atomic.Uint64
	StagingQueueDrops  atomic.Uint64
	HandlerErrors      atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance, stamped with the current
// time as the session start.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordPresent records a correlated present event and the time spent
// correlating it.
func (m *Metrics) RecordPresent(latencyNs uint64, discarded bool) {
	m.PresentsObserved.Add(1)
	if discarded {
		m.PresentsDiscarded.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordLSREvent records a scored late-stage-reprojection event.
func (m *Metrics) RecordLSREvent(latencyNs uint64) {
	m.LSREventsObserved.Add(1)
	m.recordLatency(latencyNs)
}

// RecordLoss records events/buffers lost as reported by
// session.Session.CheckLostReports. Informational: never causes
// termination.
func (m *Metrics) RecordLoss(eventsLost, buffersLost uint32) {
	m.EventsLost.Add(uint64(eventsLost))
	m.BuffersLost.Add(uint64(buffersLost))
}

// RecordStagingDrop records a raw event dropped because its
// per-provider staging queue was full.
func (m *Metrics) RecordStagingDrop() {
	m.StagingQueueDrops.Add(1)
}

// RecordHandlerError records a handler panic or error confined by the
// dispatch loop.
func (m *Metrics) RecordHandlerError() {
	m.HandlerErrors.Add(1)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the session as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	PresentsObserved  uint64
	LSREventsObserved uint64
	PresentsDiscarded uint64
	EventsLost        uint64
	BuffersLost       uint64
	StagingQueueDrops uint64
	HandlerErrors     uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	PresentRate float64 // presents observed per second
	LSRRate     float64 // LSR events observed per second
	LossRate    float64 // events lost as a fraction of events observed
	TotalEvents uint64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		PresentsObserved:  m.PresentsObserved.Load(),
		LSREventsObserved: m.LSREventsObserved.Load(),
		PresentsDiscarded: m.PresentsDiscarded.Load(),
		EventsLost:        m.EventsLost.Load(),
		BuffersLost:       m.BuffersLost.Load(),
		StagingQueueDrops: m.StagingQueueDrops.Load(),
		HandlerErrors:     m.HandlerErrors.Load(),
	}

	snap.TotalEvents = snap.PresentsObserved + snap.LSREventsObserved

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.PresentRate = float64(snap.PresentsObserved) / uptimeSeconds
		snap.LSRRate = float64(snap.LSREventsObserved) / uptimeSeconds
	}

	if snap.TotalEvents > 0 {
		snap.LossRate = float64(snap.EventsLost) / float64(snap.TotalEvents)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all counters, used in tests.
func (m *Metrics) Reset() {
	m.PresentsObserved.Store(0)
	m.LSREventsObserved.Store(0)
	m.PresentsDiscarded.Store(0)
	m.EventsLost.Store(0)
	m.BuffersLost.Store(0)
	m.StagingQueueDrops.Store(0)
	m.HandlerErrors.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection, decoupling the
// capture pipeline from the concrete Metrics implementation.
type Observer interface {
	ObservePresent(latencyNs uint64, discarded bool)
	ObserveLSREvent(latencyNs uint64)
	ObserveLoss(eventsLost, buffersLost uint32)
	ObserveStagingDrop()
	ObserveHandlerError()
}

// NoOpObserver is a no-op Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObservePresent(uint64, bool)       {}
func (NoOpObserver) ObserveLSREvent(uint64)            {}
func (NoOpObserver) ObserveLoss(uint32, uint32)        {}
func (NoOpObserver) ObserveStagingDrop()                {}
func (NoOpObserver) ObserveHandlerError()               {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObservePresent(latencyNs uint64, discarded bool) {
	o.metrics.RecordPresent(latencyNs, discarded)
}

func (o *MetricsObserver) ObserveLSREvent(latencyNs uint64) {
	o.metrics.RecordLSREvent(latencyNs)
}

func (o *MetricsObserver) ObserveLoss(eventsLost, buffersLost uint32) {
	o.metrics.RecordLoss(eventsLost, buffersLost)
}

func (o *MetricsObserver) ObserveStagingDrop() {
	o.metrics.RecordStagingDrop()
}

func (o *MetricsObserver) ObserveHandlerError() {
	o.metrics.RecordHandlerError()
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
