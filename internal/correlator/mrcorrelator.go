package correlator

import (
	"time"

	"github.com/fpsinspector/telemetry/internal/ringbuffer"
)

// mrProcessState is the per-process windowed history MRCorrelator
// keeps, mirroring Correlator's per-swap-chain shape but scoped to
// aggregate statistics rather than a full reprojection pipeline.
type mrProcessState struct {
	samples        []LateStageReprojectionEvent
	lastUpdateTick uint64
}

// MRCorrelator is the "mixed-reality correlator sharing the same
// pattern": per-process, windowed-history,
// prune-on-stale accumulation, emitting LSRScores rather than the
// full per-frame EventScores PresentCorrelator produces.
type MRCorrelator struct {
	processes   map[uint32]*mrProcessState
	staleWindow float64
	historyCap  int
	out         *ringbuffer.RingBuffer[LSRScores]

	wallClock func() float64
	t0Set     bool
	t0Wall    float64
	t0QPC     uint64
}

// NewMRCorrelator creates an MRCorrelator.
func NewMRCorrelator(staleWindowSeconds float64, historyCap int, out *ringbuffer.RingBuffer[LSRScores]) *MRCorrelator {
	return &MRCorrelator{
		processes:   make(map[uint32]*mrProcessState),
		staleWindow: staleWindowSeconds,
		historyCap:  historyCap,
		out:         out,
		wallClock:   func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
	}
}

// SetWallClock overrides the wall-clock source for deterministic tests.
func (m *MRCorrelator) SetWallClock(fn func() float64) {
	m.wallClock = fn
}

// OnReprojections processes a batch of LateStageReprojectionEvents,
// appending to the emitting process's windowed history and emitting
// an aggregate LSRScores record for the batch.
func (m *MRCorrelator) OnReprojections(batch []LateStageReprojectionEvent, nowTicks, perfFreq uint64) {
	if len(batch) == 0 {
		return
	}
	for _, evt := range batch {
		state, ok := m.processes[evt.LSRProcessID]
		if !ok {
			state = &mrProcessState{}
			m.processes[evt.LSRProcessID] = state
		}
		state.samples = append(state.samples, evt)
		state.lastUpdateTick = nowTicks
		m.pruneState(state, nowTicks, perfFreq)
	}

	var totalLatency float64
	var sampleCount int
	var missed int
	for _, evt := range batch {
		for _, v := range evt.StageLatenciesMs {
			totalLatency += v
			sampleCount++
		}
		if evt.Missed {
			missed++
		}
	}

	scores := LSRScores{SampleCount: len(batch)}
	if sampleCount > 0 {
		scores.AverageLatencyMs = totalLatency / float64(sampleCount)
	}
	scores.MissedFrameRate = float64(missed) / float64(len(batch))

	if !m.t0Set {
		m.t0Wall = m.wallClock()
		m.t0QPC = batch[len(batch)-1].QPCTime
		m.t0Set = true
	}
	var freq float64
	if perfFreq > 0 {
		freq = float64(perfFreq)
	} else {
		freq = 1
	}
	ts := m.t0Wall + float64(batch[len(batch)-1].QPCTime-m.t0QPC)/freq

	m.out.Add(ts, scores)
}

func (m *MRCorrelator) pruneState(state *mrProcessState, nowTicks, perfFreq uint64) {
	if perfFreq == 0 {
		return
	}
	freq := float64(perfFreq)
	start := 0
	for start < len(state.samples) {
		age := float64(nowTicks-state.samples[start].QPCTime) / freq
		if age <= m.staleWindow {
			break
		}
		start++
	}
	state.samples = state.samples[start:]
	if m.historyCap > 0 && len(state.samples) > m.historyCap {
		state.samples = state.samples[len(state.samples)-m.historyCap:]
	}
}

// MaintainProcesses removes per-process reprojection state that has
// gone stale, the LSR analog of Correlator.MaintainProcesses' swap
// chain pruning.
func (m *MRCorrelator) MaintainProcesses(nowTicks, perfFreq uint64) {
	if perfFreq == 0 {
		return
	}
	freq := float64(perfFreq)
	for pid, state := range m.processes {
		age := float64(nowTicks-state.lastUpdateTick) / freq
		if age > m.staleWindow {
			delete(m.processes, pid)
		}
	}
}

// ProcessCount reports how many processes are tracked.
func (m *MRCorrelator) ProcessCount() int {
	return len(m.processes)
}
