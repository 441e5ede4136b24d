package correlator

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// ProcessLookup is the external collaborator for OS process-name
// resolution: given a pid, report its current image name
// and whether it is still alive.
type ProcessLookup interface {
	Lookup(pid uint32) (name string, alive bool)
}

// ProcFSLookup is a best-effort /proc/<pid>/comm lookup on Linux; on
// any other platform (or if /proc is unreadable) it reports
// "<unknown>" and treats the process as not alive. This is a
// non-Windows stand-in for QueryFullProcessImageNameA, explicitly
// not the production Windows binding.
type ProcFSLookup struct{}

// NewProcFSLookup returns a ProcFSLookup.
func NewProcFSLookup() *ProcFSLookup { return &ProcFSLookup{} }

func (ProcFSLookup) Lookup(pid uint32) (string, bool) {
	path := fmt.Sprintf("/proc/%d/comm", pid)
	data, err := os.ReadFile(path)
	if err != nil {
		return "<unknown>", false
	}
	return strings.TrimSpace(string(data)), true
}

// StaticLookup is a fixed, mutable name map used in tests, where there
// is no real OS process to query.
type StaticLookup struct {
	mu    sync.Mutex
	names map[uint32]string
	dead  map[uint32]bool
}

// NewStaticLookup creates an empty StaticLookup.
func NewStaticLookup() *StaticLookup {
	return &StaticLookup{
		names: make(map[uint32]string),
		dead:  make(map[uint32]bool),
	}
}

// Set records the image name reported for pid.
func (s *StaticLookup) Set(pid uint32, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[pid] = name
}

// SetDead marks pid as no longer alive, simulating an OS process-exit
// notification for the next periodic refresh.
func (s *StaticLookup) SetDead(pid uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead[pid] = true
}

func (s *StaticLookup) Lookup(pid uint32) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead[pid] {
		return "", false
	}
	name, ok := s.names[pid]
	if !ok {
		return "<unknown>", true
	}
	return name, true
}

var (
	_ ProcessLookup = (*ProcFSLookup)(nil)
	_ ProcessLookup = (*StaticLookup)(nil)
)
