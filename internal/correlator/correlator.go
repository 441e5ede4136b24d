package correlator

import (
	"time"

	"github.com/fpsinspector/telemetry/internal/ringbuffer"
)

// Correlator converts raw per-event notifications into per-process,
// per-swap-chain state, then into a time series of EventScores. The
// ProcessMap is non-owning state touched only from the worker that
// calls OnPresents; other threads are explicitly excluded from
// reaching it, so Correlator takes no internal lock.
type Correlator struct {
	processes   map[uint32]*ProcessInfo
	targetPID   uint32
	staleWindow float64 // seconds
	historyCap  int
	lookup      ProcessLookup
	out         *ringbuffer.RingBuffer[EventScores]

	wallClock func() float64

	t0Set  bool
	t0Wall float64
	t0QPC  uint64
}

// New creates a Correlator. targetPID of 0 means "all processes".
func New(targetPID uint32, staleWindowSeconds float64, historyCap int, lookup ProcessLookup, out *ringbuffer.RingBuffer[EventScores]) *Correlator {
	return &Correlator{
		processes:   make(map[uint32]*ProcessInfo),
		targetPID:   targetPID,
		staleWindow: staleWindowSeconds,
		historyCap:  historyCap,
		lookup:      lookup,
		out:         out,
		wallClock:   func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
	}
}

// SetWallClock overrides the wall-clock source; used by tests that
// need a deterministic t0_wall anchor.
func (c *Correlator) SetWallClock(fn func() float64) {
	c.wallClock = fn
}

// OnPresents processes a batch of PresentEvents, updating per-process
// and per-swap-chain state and emitting EventScores onto the output
// ring buffer.
func (c *Correlator) OnPresents(batch []PresentEvent, nowTicks, perfFreq uint64) {
	for _, p := range batch {
		proc, ok := c.processes[p.ProcessID]
		if !ok {
			name, alive := c.lookup.Lookup(p.ProcessID)
			if !alive {
				continue
			}
			isTarget := c.targetPID == 0 || c.targetPID == p.ProcessID
			if !isTarget {
				continue
			}
			proc = &ProcessInfo{
				ImageName:  name,
				SwapChains: make(map[uint64]*SwapChainData),
				IsTarget:   isTarget,
			}
			c.processes[p.ProcessID] = proc
		}
		if !proc.IsTarget {
			continue
		}

		sc, ok := proc.SwapChains[p.SwapChainAddress]
		if !ok {
			sc = &SwapChainData{}
			proc.SwapChains[p.SwapChainAddress] = sc
		}

		sc.History = append(sc.History, p)
		if p.FinalState == Presented {
			sc.DisplayedHistory = append(sc.DisplayedHistory, p)
		}

		if len(sc.History) >= 2 {
			curr := p
			prev := sc.History[len(sc.History)-2]
			c.emitScore(curr, prev, sc, perfFreq)
		}

		sc.LastUpdateTick = nowTicks
		c.pruneSwapChain(sc, nowTicks, perfFreq)
	}
}

func (c *Correlator) emitScore(curr, prev PresentEvent, sc *SwapChainData, perfFreq uint64) {
	if perfFreq == 0 {
		return
	}
	freq := float64(perfFreq)

	deltaMs := 1000.0 * float64(curr.QPCTime-prev.QPCTime) / freq

	deltaReadyMs := 0.0
	if curr.ReadyTime != 0 {
		deltaReadyMs = 1000.0 * float64(curr.ReadyTime-curr.QPCTime) / freq
	}

	deltaDisplayedMs := 0.0
	if curr.FinalState == Presented {
		deltaDisplayedMs = 1000.0 * float64(curr.ScreenTime-curr.QPCTime) / freq
	}

	timeTakenMs := 1000.0 * float64(curr.TimeTaken) / freq

	timeSincePrevDisplayedMs := 0.0
	if curr.FinalState == Presented && len(sc.DisplayedHistory) >= 2 {
		prevDisplayed := sc.DisplayedHistory[len(sc.DisplayedHistory)-2]
		timeSincePrevDisplayedMs = 1000.0 * float64(curr.ScreenTime-prevDisplayed.ScreenTime) / freq
	}

	var fps float64
	if deltaMs != 0 {
		fps = 1000.0 / deltaMs
	}

	var flip float64
	if timeSincePrevDisplayedMs != 0 {
		flip = 1000.0 / timeSincePrevDisplayedMs
	}

	scores := EventScores{
		FPS:            fps,
		Flip:           flip,
		DeltaReady:     deltaReadyMs,
		DeltaDisplayed: deltaDisplayedMs,
		TimeTaken:      timeTakenMs,
		ScreenTime:     float64(curr.ScreenTime),
	}

	if !c.t0Set {
		c.t0Wall = c.wallClock()
		c.t0QPC = curr.QPCTime
		c.t0Set = true
	}
	ts := c.t0Wall + float64(curr.QPCTime-c.t0QPC)/freq

	c.out.Add(ts, scores)
}

// pruneSwapChain drops history entries older than the stale window
// and trims both histories to historyCap.
func (c *Correlator) pruneSwapChain(sc *SwapChainData, nowTicks, perfFreq uint64) {
	sc.History = c.pruneSlice(sc.History, nowTicks, perfFreq)
	sc.DisplayedHistory = c.pruneSlice(sc.DisplayedHistory, nowTicks, perfFreq)
}

func (c *Correlator) pruneSlice(entries []PresentEvent, nowTicks, perfFreq uint64) []PresentEvent {
	if perfFreq == 0 {
		return entries
	}
	freq := float64(perfFreq)
	start := 0
	for start < len(entries) {
		ageSeconds := float64(nowTicks-entries[start].QPCTime) / freq
		if ageSeconds <= c.staleWindow {
			break
		}
		start++
	}
	entries = entries[start:]
	if c.historyCap > 0 && len(entries) > c.historyCap {
		entries = entries[len(entries)-c.historyCap:]
	}
	return entries
}

// MaintainProcesses performs the process-info refresh on every call,
// with no rate limit of its own (the worker calls it on each 100ms
// maintenance tick): it re-queries the OS for each known process's
// image name, replacing the
// ProcessInfo (and clearing its chains) if the name changed, and
// removing the entry entirely if the OS reports the process gone.
// Independently, it removes swap chains that have gone stale.
func (c *Correlator) MaintainProcesses(nowTicks, perfFreq uint64) {
	for pid, proc := range c.processes {
		name, alive := c.lookup.Lookup(pid)
		if !alive {
			delete(c.processes, pid)
			continue
		}
		if name != proc.ImageName {
			c.processes[pid] = &ProcessInfo{
				ImageName:  name,
				SwapChains: make(map[uint64]*SwapChainData),
				IsTarget:   proc.IsTarget,
			}
			continue
		}
		proc.LastRefreshTick = nowTicks
		for addr, sc := range proc.SwapChains {
			if perfFreq == 0 {
				continue
			}
			ageSeconds := float64(nowTicks-sc.LastUpdateTick) / float64(perfFreq)
			if ageSeconds > c.staleWindow {
				delete(proc.SwapChains, addr)
			}
		}
	}
}

// OnImageStarted creates or replaces the ProcessInfo for pid, as the
// NT-process provider's "image started" notification.
func (c *Correlator) OnImageStarted(pid uint32, imageName string) {
	isTarget := c.targetPID == 0 || c.targetPID == pid
	c.processes[pid] = &ProcessInfo{
		ImageName:  imageName,
		SwapChains: make(map[uint64]*SwapChainData),
		IsTarget:   isTarget,
	}
}

// OnImageStopped removes the ProcessInfo for pid, as the NT-process
// provider's "image stopped" notification.
func (c *Correlator) OnImageStopped(pid uint32) {
	delete(c.processes, pid)
}

// ProcessCount reports how many processes are currently tracked (test
// and diagnostic use).
func (c *Correlator) ProcessCount() int {
	return len(c.processes)
}

// SwapChainCount reports how many swap chains are tracked for pid.
func (c *Correlator) SwapChainCount(pid uint32) int {
	proc, ok := c.processes[pid]
	if !ok {
		return 0
	}
	return len(proc.SwapChains)
}
