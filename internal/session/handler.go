package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/editor"
	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/measurement"
	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/terrain"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/units"
)

// Analyzer runs terrain analysis on a polygon.
type Analyzer interface {
	Analyze(ctx context.Context, polygon geospatial.Polygon, resolution int) (*terrain.Result, error)
}

// Saver persists a finished outline.
type Saver interface {
	Save(ctx context.Context, req measurement.SaveRequest) (*measurement.Measurement, error)
}

type Handler struct {
	registry          *Registry
	analyzer          Analyzer
	saver             Saver
	maxAccuracyMeters float64
	// pongWait overrides the GPS socket idle limit when non-zero.
	pongWait time.Duration
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler wires the session routes. saver may be nil when no database is
// configured; saving then answers 503.
func NewHandler(registry *Registry, analyzer Analyzer, saver Saver, maxAccuracyMeters float64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry:          registry,
		analyzer:          analyzer,
		saver:             saver,
		maxAccuracyMeters: maxAccuracyMeters,
		logger:            logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.Create)
		sessions.GET("/:id", h.Get)
		sessions.DELETE("/:id", h.Delete)
		sessions.POST("/:id/events", h.PostEvent)
		sessions.POST("/:id/analysis", h.Analyze)
		sessions.POST("/:id/measurements", h.SaveMeasurement)
		sessions.GET("/:id/gps", h.StreamGPS)
	}
	rg.GET("/units", h.ListUnits)
}

type createRequest struct {
	Unit string `json:"unit"`
}

// eventRequest is the wire form of an editor event.
type eventRequest struct {
	Type  editor.EventKind `json:"type" binding:"required"`
	Lat   *float64         `json:"lat"`
	Lng   *float64         `json:"lng"`
	Index *int             `json:"index"`
	Unit  string           `json:"unit"`
}

type analysisRequest struct {
	Resolution int `json:"resolution"`
}

type saveRequest struct {
	Name string `json:"name"`
}

type sessionResponse struct {
	ID       uuid.UUID       `json:"id"`
	Snapshot editor.Snapshot `json:"snapshot"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var unit units.MeasurementUnit
	if req.Unit != "" {
		u, err := units.Parse(req.Unit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		unit = u
	}

	s := h.registry.Create(unit)
	snap, err := s.Dispatcher().Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sessionResponse{ID: s.ID, Snapshot: snap})
}

func (h *Handler) Get(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	snap, err := s.Dispatcher().Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{ID: s.ID, Snapshot: snap})
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	if err := h.registry.Delete(id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) PostEvent(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev, err := req.toEvent()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := s.Dispatcher().Submit(c.Request.Context(), ev)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

var (
	errMissingPosition = errors.New("lat and lng are required")
	errMissingIndex    = errors.New("index is required")
)

func (r eventRequest) toEvent() (editor.Event, error) {
	switch r.Type {
	case editor.EventVertexAppend:
		if r.Lat == nil || r.Lng == nil {
			return editor.Event{}, errMissingPosition
		}
		return editor.VertexAppend(*r.Lat, *r.Lng), nil
	case editor.EventVertexRemove:
		if r.Index == nil {
			return editor.Event{}, errMissingIndex
		}
		return editor.RemoveVertex(*r.Index), nil
	case editor.EventSetUnit:
		unit, err := units.Parse(r.Unit)
		if err != nil {
			return editor.Event{}, err
		}
		return editor.SetUnit(unit), nil
	default:
		return editor.Event{Kind: r.Type}, nil
	}
}

func (h *Handler) Analyze(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req analysisRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	snap, err := s.Dispatcher().Snapshot(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	if snap.Mode == editor.ModeDrawing {
		respondError(c, ErrDrawingInProgress)
		return
	}

	result, err := h.analyzer.Analyze(ctx, snap.Polygon, req.Resolution)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) SaveMeasurement(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if h.saver == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "measurement storage is not configured"})
		return
	}

	var req saveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	snap, err := s.Dispatcher().Snapshot(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	m, err := h.saver.Save(ctx, measurement.SaveRequest{
		Name:    req.Name,
		Polygon: snap.Polygon,
		Unit:    snap.Unit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListUnits(c *gin.Context) {
	infos := make([]units.UnitInfo, 0, len(units.All()))
	for _, u := range units.All() {
		info, _ := units.Info(u)
		infos = append(infos, info)
	}
	c.JSON(http.StatusOK, infos)
}

func (h *Handler) session(c *gin.Context) (*Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return nil, false
	}

	s, err := h.registry.Get(id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return s, true
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, editor.ErrStopped):
		status = http.StatusNotFound
	case errors.Is(err, editor.ErrNotDrawing),
		errors.Is(err, editor.ErrAppendInFlight),
		errors.Is(err, ErrDrawingInProgress):
		status = http.StatusConflict
	case errors.Is(err, editor.ErrVertexIndex),
		errors.Is(err, editor.ErrUnknownEvent),
		errors.Is(err, units.ErrUnknownUnit),
		errors.Is(err, terrain.ErrInvalidResolution):
		status = http.StatusBadRequest
	case errors.Is(err, terrain.ErrPolygonRequired), errors.Is(err, measurement.ErrInvalidPolygon):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, terrain.ErrElevationQueryFailed):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
