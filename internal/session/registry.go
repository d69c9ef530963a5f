package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/editor"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/units"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrDrawingInProgress = errors.New("stop drawing before analyzing the outline")
)

// MetricsRecorder receives editor events and the live session count.
type MetricsRecorder interface {
	editor.MetricsRecorder
	SetActiveSessions(n int)
}

// RegistryConfig controls session lifetime.
type RegistryConfig struct {
	IdleTTL     time.Duration
	SweepSpec   string
	DefaultUnit units.MeasurementUnit
}

// Registry owns all live sessions and evicts idle ones on a cron schedule.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	config  RegistryConfig
	logger  *zap.Logger
	metrics MetricsRecorder
	cron    *cron.Cron
	running bool
	now     func() time.Time
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(config RegistryConfig, logger *zap.Logger, metrics MetricsRecorder) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 30 * time.Minute
	}
	if config.SweepSpec == "" {
		config.SweepSpec = "@every 5m"
	}
	if _, ok := units.Info(config.DefaultUnit); !ok {
		config.DefaultUnit = units.Hectare
	}
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		config:   config,
		logger:   logger,
		metrics:  metrics,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Create starts a new idle editor. An empty unit selects the default.
func (r *Registry) Create(unit units.MeasurementUnit) *Session {
	if unit == "" {
		unit = r.config.DefaultUnit
	}

	var opts []editor.Option
	if r.metrics != nil {
		opts = append(opts, editor.WithMetricsRecorder(r.metrics))
	}

	id := uuid.New()
	d := editor.NewDispatcher(editor.New(unit), r.logger.With(zap.String("session", id.String())), opts...)
	s := newSession(id, d, r.now())

	r.mu.Lock()
	r.sessions[id] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.reportCount(count)
	r.logger.Info("session created", zap.String("session", id.String()), zap.String("unit", string(unit)))
	return s
}

// Get returns the session and marks it active.
func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.touch(r.now())
	return s, nil
}

// Delete closes the session and drops it.
func (r *Registry) Delete(id uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.close()
	r.reportCount(count)
	r.logger.Info("session closed", zap.String("session", id.String()))
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the TTL. Sessions with an
// attached GPS stream are kept.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.config.IdleTTL)

	var expired []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.gpsAttached.Load() || s.LastActive().After(cutoff) {
			continue
		}
		expired = append(expired, s)
		delete(r.sessions, id)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	for _, s := range expired {
		s.close()
		r.logger.Info("session evicted",
			zap.String("session", s.ID.String()),
			zap.Time("last_active", s.LastActive()))
	}
	if len(expired) > 0 {
		r.reportCount(count)
	}
	return len(expired)
}

// Start schedules the idle sweep.
func (r *Registry) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("session registry already running")
	}
	if _, err := r.cron.AddFunc(r.config.SweepSpec, func() { r.Sweep() }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", r.config.SweepSpec, err)
	}
	r.cron.Start()
	r.running = true
	r.logger.Info("session sweeper started",
		zap.String("schedule", r.config.SweepSpec),
		zap.Duration("idle_ttl", r.config.IdleTTL))
	return nil
}

// Stop halts the sweeper and closes every session.
func (r *Registry) Stop() {
	r.mu.Lock()
	running := r.running
	r.running = false
	r.mu.Unlock()

	// A sweep in progress needs the lock, so wait for it unlocked.
	if running {
		<-r.cron.Stop().Done()
	}

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[uuid.UUID]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	r.reportCount(0)
}

func (r *Registry) reportCount(n int) {
	if r.metrics != nil {
		r.metrics.SetActiveSessions(n)
	}
}
