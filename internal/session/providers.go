package session

// The fixed provider registry. Identifiers are opaque
// 128-bit values in production (real ETW provider GUIDs bound by a
// Windows OS shim); here they are stable synthetic values so the
// portable core and its tests never depend on a real binding.
var (
	ProviderDXGI           = ProviderID{0x01}
	ProviderD3D9           = ProviderID{0x02}
	ProviderDXGKRNL        = ProviderID{0x03}
	ProviderDWM            = ProviderID{0x04}
	ProviderDWMLegacy      = ProviderID{0x05}
	ProviderWin32K         = ProviderID{0x06}
	ProviderDXGKRNLLegacy  = ProviderID{0x07}
	ProviderNTProcess      = ProviderID{0x08}
)

// Event kinds dispatched by the fixed provider registry's handlers.
const (
	KindBlt uint32 = iota
	KindFlip
	KindPresentHistory
	KindQueuePacket
	KindVSyncDPC
	KindMMIOFlip
	KindNTProcessStart
	KindNTProcessStop
)

// levels mirror spdlog-style severity; info=2, verbose=0 on the
// six-level scale internal/logging uses.
const (
	levelVerbose uint8 = 0
	levelInfo    uint8 = 2
)

// DefaultProviders returns the fixed registry with the filter
// configuration each provider needs.
func DefaultProviders() []Provider {
	return []Provider{
		{ID: ProviderDXGI, Level: levelInfo},
		{ID: ProviderD3D9, Level: levelInfo},
		{ID: ProviderDXGKRNL, Level: levelInfo, MatchAny: 1},
		{ID: ProviderDWM, Level: levelVerbose},
		{ID: ProviderDWMLegacy, Level: levelVerbose},
		{ID: ProviderWin32K, Level: levelInfo, MatchAny: 0x1000},
		{ID: ProviderDXGKRNLLegacy, Level: levelInfo},
		{ID: ProviderNTProcess, Level: levelInfo},
	}
}
