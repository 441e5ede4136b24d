package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// FakeOSSession is an in-memory, event-queue-driven OSSession. It is
// deterministic and used as the Controller's default OS session on
// every platform (nothing selects the Windows stub automatically), by
// tests, and by the CLI demo, standing in for the real ETW binding
// this core treats as an external collaborator.
type FakeOSSession struct {
	mu       sync.Mutex
	name     string
	started  bool
	opened   bool
	closed   bool
	enabled  map[ProviderID]bool
	perfFreq uint64
	events   chan RawEvent

	eventsLost  atomic.Uint32
	buffersLost atomic.Uint32

	pollInterval time.Duration
}

// NewFakeOSSession creates a FakeOSSession with the given QPC
// frequency (ticks per second) and event queue depth.
func NewFakeOSSession(perfFreqHz uint64, queueDepth int) *FakeOSSession {
	return &FakeOSSession{
		enabled:      make(map[ProviderID]bool),
		perfFreq:     perfFreqHz,
		events:       make(chan RawEvent, queueDepth),
		pollInterval: 20 * time.Millisecond,
	}
}

// Emit enqueues a raw event for the next Consume call to dispatch. It
// blocks if the queue is full, mirroring a real provider backpressure
// case; tests should size the queue generously.
func (f *FakeOSSession) Emit(evt RawEvent) {
	f.events <- evt
}

// InjectLoss adds to the cumulative events/buffers lost counters
// QueryLoss reports.
func (f *FakeOSSession) InjectLoss(events, buffers uint32) {
	f.eventsLost.Add(events)
	f.buffersLost.Add(buffers)
}

func (f *FakeOSSession) Start(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started && f.name == name {
		return ErrSessionExists
	}
	f.name = name
	f.started = true
	return nil
}

func (f *FakeOSSession) EnableProvider(id ProviderID, level uint8, matchAny, matchAll uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled[id] = true
	return nil
}

func (f *FakeOSSession) DisableProvider(id ProviderID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.enabled, id)
	return nil
}

func (f *FakeOSSession) Open(realtime bool, path string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = true
	return f.perfFreq, nil
}

func (f *FakeOSSession) Consume(ctx context.Context, onEvent func(RawEvent), shouldStop func() bool) error {
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-f.events:
			if !ok {
				return nil
			}
			onEvent(evt)
			if shouldStop() {
				return nil
			}
		case <-ticker.C:
			if shouldStop() {
				return nil
			}
		}
	}
}

func (f *FakeOSSession) QueryLoss() (uint32, uint32, error) {
	return f.eventsLost.Load(), f.buffersLost.Load(), nil
}

func (f *FakeOSSession) ControlStop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
	return nil
}

func (f *FakeOSSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var _ OSSession = (*FakeOSSession)(nil)
