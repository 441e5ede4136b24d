// Package session owns the OS tracing-session subscription: provider
// registration, handler dispatch, and the lifecycle around a blocking
// consume loop. The actual tracing API is reached through the
// OSSession interface so the dispatch and bookkeeping logic stays
// portable and independently testable.
package session

import "context"

// ProviderID is an opaque 128-bit provider identifier, as given by the
// host OS tracing API. The portable core never inspects its bytes.
type ProviderID [16]byte

// Provider is a registered event source and its filter configuration.
type Provider struct {
	ID        ProviderID
	Level     uint8
	MatchAny  uint64
	MatchAll  uint64
}

// HandlerFunc receives raw events dispatched for a single provider.
type HandlerFunc func(ctx any, evt RawEvent)

// Handler pairs a dispatch function with an opaque context reference,
// a (function, context) dispatch table entry.
type Handler struct {
	Fn      HandlerFunc
	Context any
}

// RawEvent is the boundary type handed from a Session to a registered
// handler: the decoded envelope is an external collaborator's job.
type RawEvent struct {
	ProviderID ProviderID
	Kind       uint32
	Timestamp  uint64 // QPC ticks
	Payload    []byte
}

// OSSession is the narrow interface the portable core uses to reach
// the real OS tracing API (ETW's StartTraceA/EnableTraceEx2/
// ProcessTrace/ControlTraceW family, or an equivalent). Two
// implementations ship: FakeOSSession (in-memory, deterministic,
// the default) and a //go:build windows stub.
type OSSession interface {
	// Start creates the named tracing session. Returns ErrSessionExists
	// if a session of that name is already active.
	Start(name string) error

	// EnableProvider enables a registered provider with its filter.
	EnableProvider(id ProviderID, level uint8, matchAny, matchAll uint64) error

	// DisableProvider disables a previously enabled provider.
	DisableProvider(id ProviderID) error

	// Open opens the consume handle, returning the OS-reported
	// timestamp frequency in ticks per second.
	Open(realtime bool, path string) (perfFreqHz uint64, err error)

	// Consume blocks, invoking onEvent for each raw event and
	// shouldStop periodically (the buffer callback); it returns when
	// shouldStop reports true or the underlying trace ends.
	Consume(ctx context.Context, onEvent func(RawEvent), shouldStop func() bool) error

	// QueryLoss returns cumulative events/buffers lost counters.
	QueryLoss() (eventsLost, buffersLost uint32, err error)

	// ControlStop actively stops the underlying OS session.
	ControlStop() error

	// Close releases the consume handle.
	Close() error
}
