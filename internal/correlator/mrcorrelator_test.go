package correlator

import (
	"testing"

	"github.com/fpsinspector/telemetry/internal/ringbuffer"
)

func TestMRCorrelator_EmitsAggregateScores(t *testing.T) {
	out := ringbuffer.New[LSRScores](16)
	mr := NewMRCorrelator(5.0, 32, out)
	tick := 0.0
	mr.SetWallClock(func() float64 { tick++; return tick })

	batch := []LateStageReprojectionEvent{
		{LSRProcessID: 1, QPCTime: 100, StageLatenciesMs: map[string]float64{"render": 2.0, "warp": 1.0}, Missed: false},
		{LSRProcessID: 1, QPCTime: 200, StageLatenciesMs: map[string]float64{"render": 4.0}, Missed: true},
	}
	mr.OnReprojections(batch, 200, testPerfFreq)

	if out.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", out.Count())
	}
	_, vals, _ := out.PeekTail(1)
	s := vals[0]
	wantAvg := (2.0 + 1.0 + 4.0) / 3.0
	assertClose(t, "AverageLatencyMs", s.AverageLatencyMs, wantAvg)
	assertClose(t, "MissedFrameRate", s.MissedFrameRate, 0.5)
	if s.SampleCount != 2 {
		t.Errorf("SampleCount = %d, want 2", s.SampleCount)
	}
}

func TestMRCorrelator_MaintainProcesses_EvictsStale(t *testing.T) {
	out := ringbuffer.New[LSRScores](16)
	mr := NewMRCorrelator(5.0, 32, out)

	mr.OnReprojections([]LateStageReprojectionEvent{{LSRProcessID: 1, QPCTime: 0}}, 0, testPerfFreq)
	if mr.ProcessCount() != 1 {
		t.Fatalf("expected 1 process tracked")
	}

	mr.MaintainProcesses(10*testPerfFreq, testPerfFreq)
	if mr.ProcessCount() != 0 {
		t.Errorf("expected stale process removed, got %d", mr.ProcessCount())
	}
}

func TestMRCorrelator_EmptyBatchIsNoOp(t *testing.T) {
	out := ringbuffer.New[LSRScores](16)
	mr := NewMRCorrelator(5.0, 32, out)
	mr.OnReprojections(nil, 0, testPerfFreq)
	if out.Count() != 0 {
		t.Errorf("empty batch should not emit, got count %d", out.Count())
	}
}
