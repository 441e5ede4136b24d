package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fpsinspector/telemetry/internal/logging"
)

// Session owns the subscription to N event providers, the dispatch
// table from provider-id to handler, and the configure → start →
// consume → stop lifecycle. The actual OS tracing API is reached
// through OSSession.
type Session struct {
	os OSSession

	mu        sync.Mutex
	providers map[ProviderID]Provider
	handlers  map[ProviderID]Handler

	initialized bool
	perfFreq    uint64
	name        string
	shouldStop  func() bool

	startTime    atomic.Uint64 // latched on the first observed event
	startTimeSet atomic.Bool

	lastEventsLost  uint32
	lastBuffersLost uint32

	log *logging.Logger
}

// New creates a Session bound to the given OSSession.
func New(os OSSession, log *logging.Logger) *Session {
	if log == nil {
		log = logging.Default()
	}
	return &Session{
		os:        os,
		providers: make(map[ProviderID]Provider),
		handlers:  make(map[ProviderID]Handler),
		log:       log,
	}
}

// AddProvider registers a provider. Returns ErrProviderRegistered if
// the provider-id is already registered.
func (s *Session) AddProvider(p Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.providers[p.ID]; exists {
		return ErrProviderRegistered
	}
	s.providers[p.ID] = p
	return nil
}

// AddHandler registers the callback that receives raw events for a
// given provider-id. Returns ErrHandlerRegistered if already set.
func (s *Session) AddHandler(id ProviderID, fn HandlerFunc, ctxRef any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.handlers[id]; exists {
		return ErrHandlerRegistered
	}
	s.handlers[id] = Handler{Fn: fn, Context: ctxRef}
	return nil
}

// AddProviderAndHandler registers both atomically: if handler
// registration fails, the provider registration is rolled back.
func (s *Session) AddProviderAndHandler(p Provider, fn HandlerFunc, ctxRef any) error {
	if err := s.AddProvider(p); err != nil {
		return err
	}
	if err := s.AddHandler(p.ID, fn, ctxRef); err != nil {
		s.mu.Lock()
		delete(s.providers, p.ID)
		s.mu.Unlock()
		return err
	}
	return nil
}

// RemoveProvider unregisters a provider. Returns ErrProviderNotRegistered
// if it was never registered.
func (s *Session) RemoveProvider(id ProviderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.providers[id]; !exists {
		return ErrProviderNotRegistered
	}
	delete(s.providers, id)
	return nil
}

// RemoveHandler unregisters a handler.
func (s *Session) RemoveHandler(id ProviderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.handlers[id]; !exists {
		return ErrHandlerNotRegistered
	}
	delete(s.handlers, id)
	return nil
}

// RemoveProviderAndHandler removes both registrations for id.
func (s *Session) RemoveProviderAndHandler(id ProviderID) error {
	errP := s.RemoveProvider(id)
	errH := s.RemoveHandler(id)
	if errP != nil {
		return errP
	}
	return errH
}

// InitializeRealtime creates a real-time collection session. If a
// session of the same name already exists, it is stopped and start
// is retried once. Every registered provider is enabled with its
// configured filter; the consume handle is opened and the OS-reported
// timestamp frequency recorded.
func (s *Session) InitializeRealtime(name string, shouldStop func() bool) error {
	return s.initialize(name, true, "", shouldStop)
}

// InitializeFromFile is InitializeRealtime's recorded-file analog.
func (s *Session) InitializeFromFile(path string, shouldStop func() bool) error {
	return s.initialize("", false, path, shouldStop)
}

func (s *Session) initialize(name string, realtime bool, path string, shouldStop func() bool) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	providers := make([]Provider, 0, len(s.providers))
	for _, p := range s.providers {
		providers = append(providers, p)
	}
	s.mu.Unlock()

	if realtime {
		if err := s.os.Start(name); err != nil {
			if err == ErrSessionExists {
				s.log.Warn("session name collision, stopping prior session and retrying", "name", name)
				if stopErr := s.os.ControlStop(); stopErr != nil {
					return stopErr
				}
				if err = s.os.Start(name); err != nil {
					s.log.Error("failed to start session after collision retry", "name", name, "error", err)
					return err
				}
			} else {
				s.log.Error("failed to start session", "name", name, "error", err)
				return err
			}
		}
	}

	enabled := make([]ProviderID, 0, len(providers))
	for _, p := range providers {
		if err := s.os.EnableProvider(p.ID, p.Level, p.MatchAny, p.MatchAll); err != nil {
			for _, id := range enabled {
				_ = s.os.DisableProvider(id)
			}
			s.log.Error("failed to enable provider, rolling back", "error", err)
			return err
		}
		enabled = append(enabled, p.ID)
	}

	freq, err := s.os.Open(realtime, path)
	if err != nil {
		for _, id := range enabled {
			_ = s.os.DisableProvider(id)
		}
		s.log.Error("failed to open consume handle", "error", err)
		return err
	}

	s.mu.Lock()
	s.perfFreq = freq
	s.name = name
	s.shouldStop = shouldStop
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// PerfFreq returns the OS-reported QPC tick frequency recorded at
// Open. Valid only after a successful InitializeRealtime/FromFile.
func (s *Session) PerfFreq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perfFreq
}

// StartTime returns the QPC timestamp of the first observed event and
// whether one has been observed yet.
func (s *Session) StartTime() (uint64, bool) {
	return s.startTime.Load(), s.startTimeSet.Load()
}

// Finalize closes the consume handle, disables all registered
// providers, and clears registration tables. Idempotent.
func (s *Session) Finalize() error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return nil
	}
	ids := make([]ProviderID, 0, len(s.providers))
	for id := range s.providers {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		_ = s.os.DisableProvider(id)
	}
	err := s.os.Close()

	s.mu.Lock()
	s.providers = make(map[ProviderID]Provider)
	s.handlers = make(map[ProviderID]Handler)
	s.initialized = false
	s.perfFreq = 0
	s.mu.Unlock()
	return err
}

// Stop actively stops the underlying OS session, distinct from
// Finalize which also releases registrations.
func (s *Session) Stop() error {
	return s.os.ControlStop()
}

// Consume drives the blocking OS consume call. The event callback
// looks up the handler for the raw event's provider-id and invokes it,
// discarding events with no registered handler; handler panics are
// confined and logged, never propagated. The very first observed
// event's timestamp is latched as the session start time. The buffer
// callback invokes the stored should_stop predicate.
func (s *Session) Consume(ctx context.Context, onLostPoll func()) error {
	s.mu.Lock()
	shouldStop := s.shouldStop
	s.mu.Unlock()
	if shouldStop == nil {
		return ErrNotInitialized
	}

	onEvent := func(evt RawEvent) {
		if s.startTimeSet.CompareAndSwap(false, true) {
			s.startTime.Store(evt.Timestamp)
		}
		s.mu.Lock()
		h, ok := s.handlers[evt.ProviderID]
		s.mu.Unlock()
		if !ok {
			return
		}
		s.dispatch(h, evt)
	}

	stopPoll := func() bool {
		if onLostPoll != nil {
			onLostPoll()
		}
		return shouldStop()
	}

	err := s.os.Consume(ctx, onEvent, stopPoll)
	if err == nil && !shouldStop() {
		// The consume loop exited on its own (the underlying trace
		// ended) without the stop flag having been set. Ordinary
		// Stop() calls race this check by design, so this is a Warn,
		// not an Error.
		s.log.Warn("consume loop exited with should_stop still false")
	}
	return err
}

// dispatch invokes a handler, confining panics as a handler-error:
// internal failures inside handlers are logged and discarded, never
// propagated to the consume loop.
func (s *Session) dispatch(h Handler, evt RawEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panicked, confining", "provider", evt.ProviderID, "recover", r)
		}
	}()
	h.Fn(h.Context, evt)
}

// CheckLostReports queries the OS session for cumulative event and
// buffer loss counters, computes deltas since the last query, and
// returns true when either delta is nonzero.
func (s *Session) CheckLostReports() (eventsLostDelta, buffersLostDelta uint32, lossOccurred bool, err error) {
	events, buffers, err := s.os.QueryLoss()
	if err != nil {
		return 0, 0, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	eventsLostDelta = events - s.lastEventsLost
	buffersLostDelta = buffers - s.lastBuffersLost
	s.lastEventsLost = events
	s.lastBuffersLost = buffers
	return eventsLostDelta, buffersLostDelta, eventsLostDelta != 0 || buffersLostDelta != 0, nil
}
