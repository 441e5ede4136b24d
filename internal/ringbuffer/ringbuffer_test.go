package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_CountNeverExceedsCapacity(t *testing.T) {
	b := New[int](3)
	for i := 0; i < 10; i++ {
		b.Add(float64(i), i)
		require.LessOrEqual(t, b.Count(), 3)
	}
	assert.Equal(t, 3, b.Count())
}

func TestOverwrite_Scenario3(t *testing.T) {
	// Capacity 3; insert (1,A),(2,B),(3,C),(4,D). drain(inf) -> [(2,B),(3,C),(4,D)].
	b := New[string](3)
	b.Add(1, "A")
	b.Add(2, "B")
	b.Add(3, "C")
	b.Add(4, "D")

	assert.Equal(t, 3, b.Count())

	ts, vals, n := b.Drain(1000)
	require.Equal(t, 3, n)
	assert.Equal(t, []float64{2, 3, 4}, ts)
	assert.Equal(t, []string{"B", "C", "D"}, vals)

	assert.Equal(t, 0, b.Count())
}

func TestPeekTail_DoesNotRemove_Scenario4(t *testing.T) {
	b := New[string](3)
	b.Add(1, "A")
	b.Add(2, "B")
	b.Add(3, "C")
	b.Add(4, "D")

	ts, vals, n := b.PeekTail(2)
	require.Equal(t, 2, n)
	assert.Equal(t, []float64{3, 4}, ts)
	assert.Equal(t, []string{"C", "D"}, vals)
	assert.Equal(t, 3, b.Count(), "peek must not remove entries")

	// A subsequent drain still observes the full steady-state contents.
	ts, vals, n = b.Drain(1000)
	require.Equal(t, 3, n)
	assert.Equal(t, []float64{2, 3, 4}, ts)
	assert.Equal(t, []string{"B", "C", "D"}, vals)
}

func TestPeekTail_Idempotent(t *testing.T) {
	b := New[int](5)
	for i := 0; i < 4; i++ {
		b.Add(float64(i), i)
	}
	ts1, v1, n1 := b.PeekTail(2)
	ts2, v2, n2 := b.PeekTail(2)
	assert.Equal(t, n1, n2)
	assert.Equal(t, ts1, ts2)
	assert.Equal(t, v1, v2)
}

func TestDrainAndPeekTail_ZeroMax(t *testing.T) {
	b := New[int](4)
	b.Add(1, 1)
	b.Add(2, 2)

	_, _, n := b.Drain(0)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, b.Count())

	_, _, n = b.PeekTail(0)
	assert.Equal(t, 0, n)
}

func TestRate(t *testing.T) {
	b := New[int](8)
	assert.Equal(t, float32(0), b.Rate(), "rate with <2 entries is 0")

	b.Add(0, 1)
	b.Add(1, 2)
	b.Add(2, 3)
	b.Add(3, 4)
	// 4 entries spanning 3 seconds -> (4-1)/3
	assert.InDelta(t, float32(3)/float32(3), b.Rate(), 1e-9)
}

func TestRate_LocksAcrossEntireComputation(t *testing.T) {
	// Rate must be safely callable back-to-back with Add from another
	// goroutine without ever observing a stuck lock.
	b := New[int](16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			b.Add(float64(i), i)
		}
	}()
	for i := 0; i < 200; i++ {
		_ = b.Rate()
	}
	<-done
}

func TestExhaustiveSmallCapacity(t *testing.T) {
	// Verify add-that-wraps-past-tail advances both head and tail correctly
	// across every capacity/insert-count combination in a small range.
	for capacity := 1; capacity <= 5; capacity++ {
		for inserts := 0; inserts <= 12; inserts++ {
			b := New[int](capacity)
			for i := 0; i < inserts; i++ {
				b.Add(float64(i), i)
			}
			wantCount := inserts
			if wantCount > capacity {
				wantCount = capacity
			}
			require.Equalf(t, wantCount, b.Count(), "capacity=%d inserts=%d", capacity, inserts)

			_, vals, n := b.Drain(1000)
			require.Equal(t, wantCount, n)
			if wantCount > 0 {
				wantFirst := inserts - wantCount
				assert.Equal(t, wantFirst, vals[0])
				assert.Equal(t, inserts-1, vals[len(vals)-1])
			}
			assert.Equal(t, 0, b.Count())
		}
	}
}
