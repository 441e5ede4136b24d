//go:build windows

package session

import "context"

// windowsOSSession documents the real ETW call sequence this core
// treats as an external collaborator (TraceSession.cpp's
// StartTraceA/EnableTraceEx2/ProcessTrace/ControlTraceW family) but
// does not bind it: the real binding is explicitly out of scope for
// the portable core.
type windowsOSSession struct{}

// NewWindowsOSSession returns an OSSession stub for Windows builds.
// Every method reports ErrNotSupported; wiring this to the real ETW
// API is left to a platform-specific shim outside this module.
func NewWindowsOSSession() OSSession {
	return windowsOSSession{}
}

func (windowsOSSession) Start(name string) error { return ErrNotSupported }

func (windowsOSSession) EnableProvider(id ProviderID, level uint8, matchAny, matchAll uint64) error {
	return ErrNotSupported
}

func (windowsOSSession) DisableProvider(id ProviderID) error { return ErrNotSupported }

func (windowsOSSession) Open(realtime bool, path string) (uint64, error) {
	return 0, ErrNotSupported
}

func (windowsOSSession) Consume(ctx context.Context, onEvent func(RawEvent), shouldStop func() bool) error {
	return ErrNotSupported
}

func (windowsOSSession) QueryLoss() (uint32, uint32, error) { return 0, 0, ErrNotSupported }

func (windowsOSSession) ControlStop() error { return ErrNotSupported }

func (windowsOSSession) Close() error { return ErrNotSupported }
