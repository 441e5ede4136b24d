package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/fpsinspector/telemetry/internal/session"
)

// MockProvider is a scriptable OSSession a test or example can hand to
// Controller as its osFactory, standing in for a real ETW provider.
// Every Emit* method wraps its arguments as the JSON Lines wire record
// JSONDecoder expects, so a MockProvider-driven Controller exercises
// exactly the same decode path a replayed recording would.
type MockProvider struct {
	*session.FakeOSSession
}

// NewMockProvider creates a MockProvider with the given QPC frequency
// (ticks per second) and event queue depth of the underlying
// FakeOSSession.
func NewMockProvider(perfFreqHz uint64, queueDepth int) *MockProvider {
	return &MockProvider{FakeOSSession: session.NewFakeOSSession(perfFreqHz, queueDepth)}
}

// EmitPresent enqueues a present event addressed to the DXGI provider.
func (m *MockProvider) EmitPresent(processID uint32, swapChainAddress, qpcTime, readyTime, screenTime, timeTaken uint64, finalState string) {
	payload, err := json.Marshal(map[string]any{
		"type":               "present",
		"process_id":         processID,
		"swap_chain_address": swapChainAddress,
		"qpc_time":           qpcTime,
		"ready_time":         readyTime,
		"screen_time":        screenTime,
		"time_taken":         timeTaken,
		"final_state":        finalState,
	})
	if err != nil {
		panic(fmt.Sprintf("telemetry: MockProvider.EmitPresent: %v", err))
	}
	m.Emit(session.RawEvent{
		ProviderID: session.ProviderDXGI,
		Kind:       session.KindFlip,
		Timestamp:  qpcTime,
		Payload:    payload,
	})
}

// EmitLSR enqueues a late-stage-reprojection event addressed to the
// DWM provider.
func (m *MockProvider) EmitLSR(appProcessID, lsrProcessID uint32, qpcTime uint64, stageLatenciesMs map[string]float64, missed bool) {
	payload, err := json.Marshal(map[string]any{
		"type":               "lsr",
		"app_process_id":     appProcessID,
		"lsr_process_id":     lsrProcessID,
		"qpc_time":           qpcTime,
		"stage_latencies_ms": stageLatenciesMs,
		"missed":             missed,
	})
	if err != nil {
		panic(fmt.Sprintf("telemetry: MockProvider.EmitLSR: %v", err))
	}
	m.Emit(session.RawEvent{
		ProviderID: session.ProviderDWM,
		Kind:       session.KindFlip,
		Timestamp:  qpcTime,
		Payload:    payload,
	})
}

// EmitNTProcess enqueues an image-started/image-stopped notification
// addressed to the NT-process provider.
func (m *MockProvider) EmitNTProcess(processID uint32, imageName string, started bool) {
	payload, err := json.Marshal(map[string]any{
		"type":       "ntprocess",
		"process_id": processID,
		"image_name": imageName,
		"started":    started,
	})
	if err != nil {
		panic(fmt.Sprintf("telemetry: MockProvider.EmitNTProcess: %v", err))
	}
	kind := session.KindNTProcessStop
	if started {
		kind = session.KindNTProcessStart
	}
	m.Emit(session.RawEvent{
		ProviderID: session.ProviderNTProcess,
		Kind:       kind,
		Payload:    payload,
	})
}

var _ session.OSSession = (*MockProvider)(nil)
