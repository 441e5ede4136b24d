package correlator

import (
	"strings"
	"testing"

	"github.com/fpsinspector/telemetry/internal/session"
)

func TestJSONDecoder_DecodesPresent(t *testing.T) {
	d := NewJSONDecoder()
	raw := session.RawEvent{Payload: []byte(`{"type":"present","process_id":1,"swap_chain_address":10,"qpc_time":100,"final_state":"presented","screen_time":150}`)}

	evt, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if evt.Present == nil {
		t.Fatal("expected a Present event")
	}
	if evt.Present.ProcessID != 1 || evt.Present.FinalState != Presented {
		t.Errorf("unexpected present event: %+v", evt.Present)
	}
}

func TestJSONDecoder_DecodesLSR(t *testing.T) {
	d := NewJSONDecoder()
	raw := session.RawEvent{Payload: []byte(`{"type":"lsr","lsr_process_id":2,"qpc_time":200,"stage_latencies_ms":{"render":3.5},"missed":true}`)}

	evt, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if evt.LSR == nil {
		t.Fatal("expected an LSR event")
	}
	if !evt.LSR.Missed || evt.LSR.StageLatenciesMs["render"] != 3.5 {
		t.Errorf("unexpected LSR event: %+v", evt.LSR)
	}
}

func TestJSONDecoder_DecodesNTProcess(t *testing.T) {
	d := NewJSONDecoder()
	raw := session.RawEvent{Payload: []byte(`{"type":"ntprocess","process_id":9,"image_name":"game.exe","started":true}`)}

	evt, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if evt.NTProcess == nil || evt.NTProcess.ImageName != "game.exe" || !evt.NTProcess.Started {
		t.Errorf("unexpected NTProcess event: %+v", evt.NTProcess)
	}
}

func TestJSONDecoder_UnknownTypeErrors(t *testing.T) {
	d := NewJSONDecoder()
	_, err := d.Decode(session.RawEvent{Payload: []byte(`{"type":"bogus"}`)})
	if err == nil {
		t.Error("expected an error for an unknown record type")
	}
}

func TestReadJSONLines_Deterministic(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"present","process_id":1,"qpc_time":0,"final_state":"discarded"}`,
		`{"type":"present","process_id":1,"qpc_time":100,"final_state":"discarded"}`,
		``, // blank lines are skipped
		`{"type":"ntprocess","process_id":1,"image_name":"game.exe","started":true}`,
	}, "\n")

	events, err := ReadJSONLines(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadJSONLines failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Timestamp != 0 || events[1].Timestamp != 100 {
		t.Errorf("unexpected timestamps: %+v", events)
	}
}

func TestReadJSONLines_MalformedLineErrors(t *testing.T) {
	_, err := ReadJSONLines(strings.NewReader("not json"))
	if err == nil {
		t.Error("expected an error for a malformed line")
	}
}
