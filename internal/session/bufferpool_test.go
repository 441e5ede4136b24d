package session

import "testing"

func TestGetPayloadBuffer_SizeBuckets(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		expectCap int
	}{
		{"256B bucket - exact", 256, 256},
		{"256B bucket - smaller", 100, 256},
		{"1K bucket - exact", 1024, 1024},
		{"4K bucket - exact", 4096, 4096},
		{"16K bucket - overflow", 9000, 16384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := GetPayloadBuffer(tt.size)
			if len(buf) != tt.size {
				t.Errorf("GetPayloadBuffer(%d) len=%d, want %d", tt.size, len(buf), tt.size)
			}
			if cap(buf) != tt.expectCap {
				t.Errorf("GetPayloadBuffer(%d) cap=%d, want %d", tt.size, cap(buf), tt.expectCap)
			}
			PutPayloadBuffer(buf)
		})
	}
}

func TestPutPayloadBuffer_NonStandardCap(t *testing.T) {
	buf := make([]byte, 777)
	PutPayloadBuffer(buf) // must not panic
}
