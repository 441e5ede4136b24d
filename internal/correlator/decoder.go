package correlator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fpsinspector/telemetry/internal/session"
)

// Decoder is the external collaborator for parsing a raw per-driver
// event into a domain record; binding it to a real ETW parser is out
// of scope here. Exactly one field of a returned DecodedEvent is set.
type Decoder interface {
	Decode(raw session.RawEvent) (DecodedEvent, error)
}

// DecodedEvent is a tagged union of the three record kinds a Decoder
// may produce from one RawEvent.
type DecodedEvent struct {
	Present   *PresentEvent
	LSR       *LateStageReprojectionEvent
	NTProcess *NTProcessEvent
}

// jsonRecord is the wire shape for one JSON Lines replay record.
type jsonRecord struct {
	Type string `json:"type"`

	ProcessID        uint32 `json:"process_id"`
	SwapChainAddress uint64 `json:"swap_chain_address"`
	QPCTime          uint64 `json:"qpc_time"`
	ReadyTime        uint64 `json:"ready_time"`
	ScreenTime       uint64 `json:"screen_time"`
	TimeTaken        uint64 `json:"time_taken"`
	FinalState       string `json:"final_state"`

	AppProcessID     uint32             `json:"app_process_id"`
	LSRProcessID     uint32             `json:"lsr_process_id"`
	StageLatenciesMs map[string]float64 `json:"stage_latencies_ms"`
	Missed           bool               `json:"missed"`

	ImageName string `json:"image_name"`
	Started   bool   `json:"started"`
}

func parseFinalState(s string) FinalState {
	switch s {
	case "presented":
		return Presented
	case "discarded":
		return Discarded
	case "aborted":
		return Aborted
	default:
		return Unknown
	}
}

// JSONDecoder decodes a recorded/replayed JSON Lines event stream,
// the deterministic-replay mechanism this module relies on: replaying a
// recorded stream through the live pipeline is in scope, replaying
// ETL files for offline analysis is not.
type JSONDecoder struct{}

// NewJSONDecoder creates a JSONDecoder.
func NewJSONDecoder() *JSONDecoder { return &JSONDecoder{} }

func (JSONDecoder) Decode(raw session.RawEvent) (DecodedEvent, error) {
	var rec jsonRecord
	if err := json.Unmarshal(raw.Payload, &rec); err != nil {
		return DecodedEvent{}, fmt.Errorf("correlator: decode JSON record: %w", err)
	}

	switch rec.Type {
	case "present":
		return DecodedEvent{Present: &PresentEvent{
			ProcessID:        rec.ProcessID,
			SwapChainAddress: rec.SwapChainAddress,
			QPCTime:          rec.QPCTime,
			ReadyTime:        rec.ReadyTime,
			ScreenTime:       rec.ScreenTime,
			TimeTaken:        rec.TimeTaken,
			FinalState:       parseFinalState(rec.FinalState),
		}}, nil
	case "lsr":
		return DecodedEvent{LSR: &LateStageReprojectionEvent{
			AppProcessID:     rec.AppProcessID,
			LSRProcessID:     rec.LSRProcessID,
			QPCTime:          rec.QPCTime,
			StageLatenciesMs: rec.StageLatenciesMs,
			Missed:           rec.Missed,
		}}, nil
	case "ntprocess":
		return DecodedEvent{NTProcess: &NTProcessEvent{
			ProcessID: rec.ProcessID,
			ImageName: rec.ImageName,
			Started:   rec.Started,
		}}, nil
	default:
		return DecodedEvent{}, fmt.Errorf("correlator: unknown record type %q", rec.Type)
	}
}

// ReadJSONLines reads newline-delimited JSON records from r and wraps
// each as a session.RawEvent (Payload set to the raw line, Timestamp
// to the record's qpc_time), ready to be replayed through a Session's
// registered handlers exactly as a live dispatch would deliver them.
func ReadJSONLines(r io.Reader) ([]session.RawEvent, error) {
	var events []session.RawEvent
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec jsonRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("correlator: decode replay line: %w", err)
		}
		payload := make([]byte, len(line))
		copy(payload, line)
		events = append(events, session.RawEvent{
			ProviderID: providerForRecordType(rec.Type),
			Kind:       kindForRecordType(rec.Type),
			Timestamp:  rec.QPCTime,
			Payload:    payload,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func providerForRecordType(t string) session.ProviderID {
	switch t {
	case "present":
		return session.ProviderDXGI
	case "lsr":
		return session.ProviderDWM
	case "ntprocess":
		return session.ProviderNTProcess
	default:
		return session.ProviderID{}
	}
}

func kindForRecordType(t string) uint32 {
	switch t {
	case "present":
		return session.KindFlip
	case "lsr":
		return session.KindFlip
	case "ntprocess":
		return session.KindNTProcessStart
	default:
		return 0
	}
}

var _ Decoder = (*JSONDecoder)(nil)
