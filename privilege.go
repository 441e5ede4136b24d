package telemetry

import "os"

// PrivilegeChecker is the external collaborator for the elevation
// check: the real Windows privilege-name check
// is out of core scope.
type PrivilegeChecker interface {
	IsElevated() bool
}

// ProcessUIDChecker reports true iff the effective UID is 0, a
// non-Windows stand-in for the Windows privilege-name check, not the
// production binding.
type ProcessUIDChecker struct{}

func (ProcessUIDChecker) IsElevated() bool {
	return os.Geteuid() == 0
}

// AlwaysAllowed never denies elevation; used in tests.
type AlwaysAllowed struct{}

func (AlwaysAllowed) IsElevated() bool { return true }

var (
	_ PrivilegeChecker = ProcessUIDChecker{}
	_ PrivilegeChecker = AlwaysAllowed{}
)
