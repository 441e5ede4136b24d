// Package correlator turns raw present and late-stage-reprojection
// events into per-process, per-swap-chain state and derived
// EventScores / LSRScores time series.
package correlator

// FinalState is a present's terminal disposition.
type FinalState int

const (
	Unknown FinalState = iota
	Presented
	Discarded
	Aborted
)

// PresentEvent is one observed frame submission.
type PresentEvent struct {
	ProcessID        uint32
	SwapChainAddress uint64
	QPCTime          uint64
	ReadyTime        uint64 // 0 = unknown
	ScreenTime       uint64 // 0 = not yet displayed
	TimeTaken        uint64
	FinalState       FinalState
}

// LateStageReprojectionEvent is one observed mixed-reality reprojection pass.
type LateStageReprojectionEvent struct {
	AppProcessID uint32
	LSRProcessID uint32
	QPCTime      uint64
	// StageLatenciesMs holds per-stage latencies in milliseconds, keyed
	// by stage name (e.g. "render", "warp", "compositor").
	StageLatenciesMs map[string]float64
	Missed           bool
}

// NTProcessEvent is an image-started/image-stopped notification from
// the NT-process provider.
type NTProcessEvent struct {
	ProcessID uint32
	ImageName string
	Started   bool
}

// SwapChainData is the bounded present history for one swap chain.
type SwapChainData struct {
	History          []PresentEvent // all presents
	DisplayedHistory []PresentEvent // subsequence where FinalState == Presented
	LastUpdateTick   uint64
}

// ProcessInfo is the per-process accumulator: image name plus every
// swap chain observed for that process.
type ProcessInfo struct {
	ImageName       string
	SwapChains      map[uint64]*SwapChainData
	LastRefreshTick uint64
	IsTarget        bool
}

// EventScores is the per-frame derived score record, exported
// verbatim (field order and units) as the telemetry package's public
// EventScores via a type alias, defined here, not in telemetry, so
// this package does not depend on its own consumer.
type EventScores struct {
	FPS            float64 // Hz
	Flip           float64 // Hz
	DeltaReady     float64 // ms
	DeltaDisplayed float64 // ms
	TimeTaken      float64 // ms
	ScreenTime     float64 // QPC ticks, as double
}

// MarshalBinary packs the six scores as little-endian IEEE-754
// doubles with no padding, in field order: the literal 48-byte
// boundary layout, for callers that need it.
func (s EventScores) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 48)
	putFloat64LE(buf[0:8], s.FPS)
	putFloat64LE(buf[8:16], s.Flip)
	putFloat64LE(buf[16:24], s.DeltaReady)
	putFloat64LE(buf[24:32], s.DeltaDisplayed)
	putFloat64LE(buf[32:40], s.TimeTaken)
	putFloat64LE(buf[40:48], s.ScreenTime)
	return buf, nil
}

// LSRScores is the aggregate-statistics score record MRCorrelator
// emits per batch: the average of every stage latency of every event
// in the batch and the batch's missed-frame rate, not broken down per
// process or per stage, rather than the full per-frame reprojection
// pipeline.
type LSRScores struct {
	AverageLatencyMs float64
	MissedFrameRate  float64
	SampleCount      int
}
