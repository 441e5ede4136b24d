package telemetry

import (
	"testing"
	"time"
)

func TestMetrics_InitialState(t *testing.T) {
	m := NewMetrics()
	snap := m.Snapshot()
	if snap.TotalEvents != 0 {
		t.Errorf("expected 0 initial events, got %d", snap.TotalEvents)
	}
}

func TestMetrics_RecordPresent(t *testing.T) {
	m := NewMetrics()
	m.RecordPresent(1_000_000, false) // 1ms, displayed
	m.RecordPresent(2_000_000, true)  // 2ms, discarded

	snap := m.Snapshot()
	if snap.PresentsObserved != 2 {
		t.Errorf("PresentsObserved = %d, want 2", snap.PresentsObserved)
	}
	if snap.PresentsDiscarded != 1 {
		t.Errorf("PresentsDiscarded = %d, want 1", snap.PresentsDiscarded)
	}
	if snap.AvgLatencyNs != 1_500_000 {
		t.Errorf("AvgLatencyNs = %d, want 1500000", snap.AvgLatencyNs)
	}
}

func TestMetrics_RecordLSREvent(t *testing.T) {
	m := NewMetrics()
	m.RecordLSREvent(500_000)
	snap := m.Snapshot()
	if snap.LSREventsObserved != 1 {
		t.Errorf("LSREventsObserved = %d, want 1", snap.LSREventsObserved)
	}
	if snap.TotalEvents != 1 {
		t.Errorf("TotalEvents = %d, want 1", snap.TotalEvents)
	}
}

func TestMetrics_RecordLoss_IsInformational(t *testing.T) {
	m := NewMetrics()
	m.RecordPresent(1_000_000, false)
	m.RecordLoss(3, 1)

	snap := m.Snapshot()
	if snap.EventsLost != 3 {
		t.Errorf("EventsLost = %d, want 3", snap.EventsLost)
	}
	if snap.BuffersLost != 1 {
		t.Errorf("BuffersLost = %d, want 1", snap.BuffersLost)
	}
	if snap.LossRate <= 0 {
		t.Errorf("LossRate = %f, want > 0", snap.LossRate)
	}
	// loss never affects the observed-event counters.
	if snap.PresentsObserved != 1 {
		t.Errorf("PresentsObserved = %d, want unaffected by loss", snap.PresentsObserved)
	}
}

func TestMetrics_StagingDropsAndHandlerErrors(t *testing.T) {
	m := NewMetrics()
	m.RecordStagingDrop()
	m.RecordStagingDrop()
	m.RecordHandlerError()

	snap := m.Snapshot()
	if snap.StagingQueueDrops != 2 {
		t.Errorf("StagingQueueDrops = %d, want 2", snap.StagingQueueDrops)
	}
	if snap.HandlerErrors != 1 {
		t.Errorf("HandlerErrors = %d, want 1", snap.HandlerErrors)
	}
}

func TestMetrics_Uptime(t *testing.T) {
	m := NewMetrics()
	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1_000_000 {
		t.Errorf("expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2*1_000_000 {
		t.Errorf("uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()
	m.RecordPresent(1_000_000, false)
	m.RecordLoss(1, 0)

	if m.Snapshot().TotalEvents == 0 {
		t.Fatal("expected events before reset")
	}

	m.Reset()

	snap := m.Snapshot()
	if snap.TotalEvents != 0 {
		t.Errorf("TotalEvents = %d, want 0 after reset", snap.TotalEvents)
	}
	if snap.EventsLost != 0 {
		t.Errorf("EventsLost = %d, want 0 after reset", snap.EventsLost)
	}
}

func TestObserver_NoOp(t *testing.T) {
	var o Observer = NoOpObserver{}
	o.ObservePresent(1_000_000, false)
	o.ObserveLSREvent(1_000_000)
	o.ObserveLoss(1, 1)
	o.ObserveStagingDrop()
	o.ObserveHandlerError()
}

func TestObserver_MetricsObserver(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	obs.ObservePresent(1_000_000, false)
	obs.ObserveLSREvent(500_000)
	obs.ObserveLoss(2, 0)
	obs.ObserveStagingDrop()
	obs.ObserveHandlerError()

	snap := m.Snapshot()
	if snap.PresentsObserved != 1 {
		t.Errorf("PresentsObserved = %d, want 1", snap.PresentsObserved)
	}
	if snap.LSREventsObserved != 1 {
		t.Errorf("LSREventsObserved = %d, want 1", snap.LSREventsObserved)
	}
	if snap.EventsLost != 2 {
		t.Errorf("EventsLost = %d, want 2", snap.EventsLost)
	}
	if snap.StagingQueueDrops != 1 {
		t.Errorf("StagingQueueDrops = %d, want 1", snap.StagingQueueDrops)
	}
	if snap.HandlerErrors != 1 {
		t.Errorf("HandlerErrors = %d, want 1", snap.HandlerErrors)
	}
}

func TestMetrics_Percentiles(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 50; i++ {
		m.RecordPresent(500_000, false) // 500us
	}
	for i := 0; i < 49; i++ {
		m.RecordPresent(5_000_000, false) // 5ms
	}
	m.RecordPresent(50_000_000, false) // 50ms, the single slowest sample

	snap := m.Snapshot()
	if snap.TotalEvents != 100 {
		t.Errorf("TotalEvents = %d, want 100", snap.TotalEvents)
	}
	if snap.LatencyP50Ns < 100_000 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("P50 = %d ns, want in 100us-1ms range", snap.LatencyP50Ns)
	}
	if snap.LatencyP99Ns < 5_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("P99 = %d ns, want in 5ms-100ms range", snap.LatencyP99Ns)
	}
}
