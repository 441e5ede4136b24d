// Package telemetry is the public surface of the graphics-present
// telemetry collector: Start/Stop a capture session and read its
// scored output from a bounded ring buffer.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/gopkg/concurrency/gopool"
	"golang.org/x/sync/errgroup"

	"github.com/fpsinspector/telemetry/internal/config"
	"github.com/fpsinspector/telemetry/internal/correlator"
	"github.com/fpsinspector/telemetry/internal/logging"
	"github.com/fpsinspector/telemetry/internal/ringbuffer"
	"github.com/fpsinspector/telemetry/internal/session"
)

const maintenancePollInterval = 100 * time.Millisecond

// Controller is the capture controller: it owns the
// session, the correlators, the output ring buffer, and the dedicated
// worker that ties them together. The OS tracing session named
// "PresentMon" is itself a process singleton, so Start/Stop are
// inherently singleton operations; see OnUnload and the
// package-level defaultController below.
type Controller struct {
	mu      sync.Mutex
	running bool
	stopped atomic.Bool

	cfg        *config.Config
	buf        *ringbuffer.RingBuffer[EventScores]
	lsrBuf     *ringbuffer.RingBuffer[LSRScores]
	metrics    *Metrics
	log        *logging.Logger
	privilege  PrivilegeChecker
	osFactory  func() session.OSSession
	decoder    correlator.Decoder
	lookup     correlator.ProcessLookup
	latestQPC  atomic.Uint64

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewController builds a Controller with the given collaborators.
// Production code typically reaches it only through the package-level
// functions below, which lazily construct one default instance; tests
// and library consumers that want several independent controllers can
// call this directly.
func NewController(privilege PrivilegeChecker, osFactory func() session.OSSession, decoder correlator.Decoder, lookup correlator.ProcessLookup, log *logging.Logger) *Controller {
	if log == nil {
		log = logging.Default()
	}
	return &Controller{
		cfg:       config.Default(),
		metrics:   NewMetrics(),
		log:       log,
		privilege: privilege,
		osFactory: osFactory,
		decoder:   decoder,
		lookup:    lookup,
	}
}

// SetLogLevel clamps level to [0,6] and applies it to the controller's
// logger. Always succeeds.
func (c *Controller) SetLogLevel(level int) error {
	c.log.SetLevel(logging.LevelFromInt(level))
	return nil
}

// Start allocates the output ring buffer, verifies elevated privilege,
// and spawns the capture worker. Fails if a worker is already running.
func (c *Controller) Start(targetPID uint32, bufferSize int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return NewError("Start", KindState, StatusAlreadyRunning, "capture already running")
	}
	if bufferSize <= 0 || bufferSize > config.MaxBufferSize {
		return NewError("Start", KindArgument, StatusInvalidArguments, "buffer_size out of range")
	}
	if c.privilege != nil && !c.privilege.IsElevated() {
		return NewError("Start", KindPrivilege, StatusPrivilegeCheckFailed, "elevation required")
	}

	c.cfg.TargetPID = targetPID
	c.cfg.BufferSize = bufferSize
	c.buf = ringbuffer.New[EventScores](bufferSize)
	c.lsrBuf = ringbuffer.New[LSRScores](bufferSize)
	c.stopped.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	c.group = group

	w, err := newWorker(c, gctx)
	if err != nil {
		cancel()
		return WrapError("Start", err)
	}

	goErr(gctx, group, func() error { return w.consume(gctx) })
	goErr(gctx, group, func() error { return w.drain(gctx) })

	c.running = true
	return nil
}

// Stop sets the stop flag and blocks until the worker joins.
// Precondition: a worker must be running and not already stopping.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return NewError("Stop", KindState, StatusNotRunning, "no capture running")
	}
	if c.stopped.Load() {
		c.mu.Unlock()
		return NewError("Stop", KindState, StatusStopSignalUnexpected, "stop already in progress")
	}
	c.stopped.Store(true)
	cancel := c.cancel
	group := c.group
	c.mu.Unlock()

	cancel()
	err := group.Wait()

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.metrics.Stop()
	if err != nil {
		return NewError("Stop", KindResource, StatusStopFailed, err.Error())
	}
	return nil
}

// Count returns the current RingBuffer entry count.
func (c *Controller) Count() (int, error) {
	c.mu.Lock()
	buf := c.buf
	c.mu.Unlock()
	if buf == nil {
		return 0, NewError("Count", KindState, StatusGeneralError, "buffer not allocated")
	}
	return buf.Count(), nil
}

// Drain removes up to n oldest EventScores from the buffer.
func (c *Controller) Drain(n int) ([]float64, []EventScores, error) {
	c.mu.Lock()
	buf := c.buf
	c.mu.Unlock()
	if buf == nil {
		return nil, nil, NewError("Drain", KindState, StatusGeneralError, "buffer not allocated")
	}
	ts, vals, _ := buf.Drain(n)
	return ts, vals, nil
}

// PeekTail returns up to n most-recent EventScores without removing them.
func (c *Controller) PeekTail(n int) ([]float64, []EventScores, error) {
	c.mu.Lock()
	buf := c.buf
	c.mu.Unlock()
	if buf == nil {
		return nil, nil, NewError("PeekTail", KindState, StatusGeneralError, "buffer not allocated")
	}
	ts, vals, _ := buf.PeekTail(n)
	return ts, vals, nil
}

// Metrics exposes the controller's operational counters.
func (c *Controller) Metrics() *Metrics {
	return c.metrics
}

var (
	defaultMu         sync.Mutex
	defaultController *Controller
)

// defaultInstance lazily constructs the process-wide Controller used
// by the package-level functions below, so callers don't need to
// thread a handle through.
func defaultInstance() *Controller {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultController == nil {
		defaultController = NewController(ProcessUIDChecker{}, nil, correlator.NewJSONDecoder(), correlator.NewProcFSLookup(), logging.Default())
	}
	return defaultController
}

// SetLogLevel applies level to the default Controller's logger.
func SetLogLevel(level int) error {
	return defaultInstance().SetLogLevel(level)
}

// Start starts the default Controller's capture worker.
func Start(targetPID uint32, bufferSize int) error {
	return defaultInstance().Start(targetPID, bufferSize)
}

// Stop stops the default Controller's capture worker.
func Stop() error {
	return defaultInstance().Stop()
}

// Count returns the default Controller's current EventScores count.
func Count() (int, error) {
	return defaultInstance().Count()
}

// Drain drains up to n EventScores from the default Controller.
func Drain(n int) ([]float64, []EventScores, error) {
	return defaultInstance().Drain(n)
}

// PeekTail peeks up to n EventScores from the default Controller.
func PeekTail(n int) ([]float64, []EventScores, error) {
	return defaultInstance().PeekTail(n)
}

// OnUnload stops a running capture and releases the default
// Controller, guaranteeing the tracing session does not outlive the
// hosting process. Safe to call whether or not a capture is running.
func OnUnload() {
	defaultMu.Lock()
	c := defaultController
	defaultController = nil
	defaultMu.Unlock()

	if c == nil {
		return
	}
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if running {
		_ = c.Stop()
	}
}

// goErr adapts a fallible function into an errgroup member while
// running its body on a gopool-managed goroutine rather than a bare
// `go` statement, containing any panic as an error instead of
// crashing the process.
func goErr(ctx context.Context, g *errgroup.Group, fn func() error) {
	done := make(chan error, 1)
	gopool.CtxGo(ctx, func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn()
	})
	g.Go(func() error {
		return <-done
	})
}
