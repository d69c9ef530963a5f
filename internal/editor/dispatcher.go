package editor

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/units"
)

// MetricsRecorder receives one observation per handled event.
type MetricsRecorder interface {
	RecordEditorEvent(kind, outcome string)
}

type request struct {
	ctx   context.Context
	event Event
	read  bool
	reply chan result
	// claimed is set by whichever side gets to the request first: the
	// run loop applying it, or the caller abandoning it.
	claimed *atomic.Bool
}

func newRequest(ctx context.Context, ev Event, read bool) request {
	return request{ctx: ctx, event: ev, read: read, reply: make(chan result, 1), claimed: new(atomic.Bool)}
}

type result struct {
	snapshot Snapshot
	err      error
}

// Dispatcher is the single mutation path into an Editor. Manual taps and
// GPS fixes are queued and applied one at a time in receipt order.
type Dispatcher struct {
	editor   *Editor
	requests chan request
	done     chan struct{}
	started  atomic.Bool
	fixBusy  atomic.Bool
	metrics  MetricsRecorder
	logger   *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetricsRecorder attaches a metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithQueueSize sets how many events may wait for the editor.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.requests = make(chan request, n)
		}
	}
}

// NewDispatcher wraps editor. Call Run before submitting events.
func NewDispatcher(editor *Editor, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		editor:   editor,
		requests: make(chan request, 16),
		done:     make(chan struct{}),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run applies queued events until ctx is cancelled. It must be called once.
func (d *Dispatcher) Run(ctx context.Context) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.requests:
			req.reply <- d.handle(req)
		}
	}
}

func (d *Dispatcher) handle(req request) result {
	if err := req.ctx.Err(); err != nil || !req.claimed.CompareAndSwap(false, true) {
		if err == nil {
			err = context.Canceled
		}
		if !req.read && d.metrics != nil {
			d.metrics.RecordEditorEvent(string(req.event.Kind), "abandoned")
		}
		return result{err: err}
	}
	if req.read {
		return result{snapshot: d.editor.Snapshot()}
	}

	snap, err := d.editor.Apply(req.event)
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		d.logger.Debug("editor event rejected",
			zap.String("event", string(req.event.Kind)),
			zap.String("source", string(req.event.Source)),
			zap.Error(err))
	}
	if d.metrics != nil {
		d.metrics.RecordEditorEvent(string(req.event.Kind), outcome)
	}
	return result{snapshot: snap, err: err}
}

// Submit queues ev and waits for it to be applied.
func (d *Dispatcher) Submit(ctx context.Context, ev Event) (Snapshot, error) {
	return d.send(ctx, newRequest(ctx, ev, false))
}

// Snapshot returns the editor state as seen from the mutation queue.
func (d *Dispatcher) Snapshot(ctx context.Context) (Snapshot, error) {
	return d.send(ctx, newRequest(ctx, Event{}, true))
}

// SubmitFix appends a location fix as a GPS-sourced vertex. A second fix
// arriving while the previous one is still being applied is refused with
// ErrAppendInFlight rather than queued behind it.
func (d *Dispatcher) SubmitFix(ctx context.Context, v geospatial.Vertex) (Snapshot, error) {
	if !d.fixBusy.CompareAndSwap(false, true) {
		if d.metrics != nil {
			d.metrics.RecordEditorEvent(string(EventVertexAppend), "busy")
		}
		return Snapshot{}, ErrAppendInFlight
	}
	defer d.fixBusy.Store(false)

	return d.Submit(ctx, Event{Kind: EventVertexAppend, Vertex: v, Source: SourceGPS})
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// send queues req and waits for its result. A caller that gives up after
// queueing only reports ctx.Err() if the request was never applied.
func (d *Dispatcher) send(ctx context.Context, req request) (Snapshot, error) {
	select {
	case d.requests <- req:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-d.done:
		return Snapshot{}, ErrStopped
	}

	select {
	case res := <-req.reply:
		return res.snapshot, res.err
	case <-ctx.Done():
		if req.claimed.CompareAndSwap(false, true) {
			return Snapshot{}, ctx.Err()
		}
		res := <-req.reply
		return res.snapshot, res.err
	case <-d.done:
		select {
		case res := <-req.reply:
			return res.snapshot, res.err
		default:
			return Snapshot{}, ErrStopped
		}
	}
}

// IsRejection reports whether err is an editor-level refusal rather than a
// transport or shutdown failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotDrawing) ||
		errors.Is(err, ErrVertexIndex) ||
		errors.Is(err, ErrUnknownEvent) ||
		errors.Is(err, ErrAppendInFlight) ||
		errors.Is(err, units.ErrUnknownUnit)
}
