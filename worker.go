package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/fpsinspector/telemetry/internal/correlator"
	"github.com/fpsinspector/telemetry/internal/session"
)

// worker is the capture worker: it owns the Session,
// the two correlators, and the staging channels that decouple the
// Session's dispatch callback (called from inside the OS consume loop)
// from correlation work. It is constructed fresh by every Start and
// discarded by the matching Stop.
type worker struct {
	c    *Controller
	sess *session.Session
	corr *correlator.Correlator
	mr   *correlator.MRCorrelator

	stagingPresent chan correlator.PresentEvent
	stagingLSR     chan correlator.LateStageReprojectionEvent
	stagingNT      chan correlator.NTProcessEvent
}

// newWorker builds and initializes a worker: it registers the fixed
// provider set against a fresh OS session and starts real-time
// collection. It does not spawn any goroutines; the caller drives
// consume and drain.
func newWorker(c *Controller, ctx context.Context) (*worker, error) {
	osFactory := c.osFactory
	if osFactory == nil {
		osFactory = func() session.OSSession {
			return session.NewFakeOSSession(10_000_000, c.cfg.StagingQueueDepth)
		}
	}

	decoder := c.decoder
	if decoder == nil {
		decoder = correlator.NewJSONDecoder()
	}
	lookup := c.lookup
	if lookup == nil {
		lookup = correlator.NewProcFSLookup()
	}

	w := &worker{
		c:              c,
		stagingPresent: make(chan correlator.PresentEvent, c.cfg.StagingQueueDepth),
		stagingLSR:     make(chan correlator.LateStageReprojectionEvent, c.cfg.StagingQueueDepth),
		stagingNT:      make(chan correlator.NTProcessEvent, c.cfg.StagingQueueDepth),
	}

	osSess := osFactory()
	w.sess = session.New(osSess, c.log)
	w.corr = correlator.New(c.cfg.TargetPID, c.cfg.StaleWindowSeconds, c.cfg.HistoryCap, lookup, c.buf)
	w.mr = correlator.NewMRCorrelator(c.cfg.StaleWindowSeconds, c.cfg.HistoryCap, c.lsrBuf)

	decodeAndStage := func(_ any, evt session.RawEvent) {
		// Copy the payload into a pooled scratch buffer before decoding:
		// the dispatch callback runs on the session's consume loop, and
		// the decoder never needs to retain evt.Payload past Decode.
		scratch := session.GetPayloadBuffer(len(evt.Payload))
		copy(scratch, evt.Payload)
		decoded, err := decoder.Decode(session.RawEvent{
			ProviderID: evt.ProviderID,
			Kind:       evt.Kind,
			Timestamp:  evt.Timestamp,
			Payload:    scratch,
		})
		session.PutPayloadBuffer(scratch)
		if err != nil {
			c.metrics.RecordHandlerError()
			return
		}
		switch {
		case decoded.Present != nil:
			select {
			case w.stagingPresent <- *decoded.Present:
			default:
				c.metrics.RecordStagingDrop()
			}
		case decoded.LSR != nil:
			select {
			case w.stagingLSR <- *decoded.LSR:
			default:
				c.metrics.RecordStagingDrop()
			}
		case decoded.NTProcess != nil:
			select {
			case w.stagingNT <- *decoded.NTProcess:
			default:
				c.metrics.RecordStagingDrop()
			}
		}
	}

	for _, p := range session.DefaultProviders() {
		if err := w.sess.AddProviderAndHandler(p, decodeAndStage, nil); err != nil {
			return nil, err
		}
	}

	if err := w.sess.InitializeRealtime("PresentMon", func() bool { return c.stopped.Load() }); err != nil {
		return nil, err
	}

	return w, nil
}

// consume drives the Session's blocking consume loop until it's
// stopped (context cancellation or should_stop), then releases the
// session's provider registrations. Context cancellation is Stop's
// ordinary shutdown signal, not a failure, so it is not returned.
func (w *worker) consume(ctx context.Context) error {
	err := w.sess.Consume(ctx, nil)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if finalizeErr := w.sess.Finalize(); err == nil {
		err = finalizeErr
	}
	return err
}

// drain pulls decoded events off the staging channels and feeds them
// to the correlators, and on a fixed tick performs the periodic
// maintenance the capture pipeline needs: loss-counter polling and
// stale-process/swap-chain pruning.
func (w *worker) drain(ctx context.Context) error {
	ticker := time.NewTicker(maintenancePollInterval)
	defer ticker.Stop()

	perfFreq := w.sess.PerfFreq()

	for {
		select {
		case <-ctx.Done():
			w.drainRemaining(perfFreq)
			return nil

		case evt := <-w.stagingPresent:
			w.processPresent(evt, perfFreq)

		case evt := <-w.stagingLSR:
			w.processLSR(evt, perfFreq)

		case evt := <-w.stagingNT:
			w.processNT(evt)

		case <-ticker.C:
			w.runMaintenance(perfFreq)
		}
	}
}

func (w *worker) processPresent(evt correlator.PresentEvent, perfFreq uint64) {
	start := time.Now()
	w.c.latestQPC.Store(evt.QPCTime)
	w.corr.OnPresents([]correlator.PresentEvent{evt}, evt.QPCTime, perfFreq)
	w.c.metrics.RecordPresent(uint64(time.Since(start).Nanoseconds()), evt.FinalState != correlator.Presented)
}

func (w *worker) processLSR(evt correlator.LateStageReprojectionEvent, perfFreq uint64) {
	start := time.Now()
	w.c.latestQPC.Store(evt.QPCTime)
	w.mr.OnReprojections([]correlator.LateStageReprojectionEvent{evt}, evt.QPCTime, perfFreq)
	w.c.metrics.RecordLSREvent(uint64(time.Since(start).Nanoseconds()))
}

func (w *worker) processNT(evt correlator.NTProcessEvent) {
	if evt.Started {
		w.corr.OnImageStarted(evt.ProcessID, evt.ImageName)
	} else {
		w.corr.OnImageStopped(evt.ProcessID)
	}
}

func (w *worker) runMaintenance(perfFreq uint64) {
	eventsLost, buffersLost, _, err := w.sess.CheckLostReports()
	if err == nil {
		w.c.metrics.RecordLoss(eventsLost, buffersLost)
	}
	nowTicks := w.c.latestQPC.Load()
	w.corr.MaintainProcesses(nowTicks, perfFreq)
	w.mr.MaintainProcesses(nowTicks, perfFreq)
}

// drainRemaining empties the staging channels one last time after the
// consume side has stopped, so events already decoded before Stop was
// observed are not silently discarded.
func (w *worker) drainRemaining(perfFreq uint64) {
	for {
		select {
		case evt := <-w.stagingPresent:
			w.processPresent(evt, perfFreq)
			continue
		default:
		}
		select {
		case evt := <-w.stagingLSR:
			w.processLSR(evt, perfFreq)
			continue
		default:
		}
		select {
		case evt := <-w.stagingNT:
			w.processNT(evt)
			continue
		default:
		}
		return
	}
}
