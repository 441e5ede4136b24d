package session

import "errors"

var (
	ErrProviderRegistered    = errors.New("session: provider already registered")
	ErrProviderNotRegistered = errors.New("session: provider not registered")
	ErrHandlerRegistered     = errors.New("session: handler already registered")
	ErrHandlerNotRegistered  = errors.New("session: handler not registered")
	ErrSessionExists         = errors.New("session: a session of that name already exists")
	ErrNotInitialized        = errors.New("session: not initialized")
	ErrAlreadyInitialized    = errors.New("session: already initialized")
	ErrNotSupported          = errors.New("session: kernel tracing binding not supported on this platform")
)
