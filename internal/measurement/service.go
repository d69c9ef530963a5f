package measurement

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/storage"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/units"
)

type Service interface {
	Save(ctx context.Context, req SaveRequest) (*Measurement, error)
	Get(ctx context.Context, id uuid.UUID) (*Measurement, error)
	List(ctx context.Context, filter ListFilter) ([]Measurement, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Export(ctx context.Context, format ExportFormat, w io.Writer) error
	ArchiveURL(ctx context.Context, id uuid.UUID) (string, error)
}

// ArchiveOptions places GeoJSON copies of saved measurements in S3.
type ArchiveOptions struct {
	Bucket    string
	Prefix    string
	URLExpiry time.Duration
}

type measurementService struct {
	repo    Repository
	archive storage.S3Client
	opts    ArchiveOptions
	logger  *zap.Logger
	now     func() time.Time
}

// NewService builds the measurement service. archive may be nil, in which
// case saved measurements are kept in the database only.
func NewService(repo Repository, archive storage.S3Client, opts ArchiveOptions, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = 15 * time.Minute
	}
	return &measurementService{
		repo:    repo,
		archive: archive,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *measurementService) Save(ctx context.Context, req SaveRequest) (*Measurement, error) {
	if !req.Polygon.IsClosable() {
		return nil, ErrInvalidPolygon
	}
	if _, ok := units.Info(req.Unit); !ok {
		req.Unit = units.Hectare
	}

	id := uuid.New()
	created := s.now().UTC()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Parcel " + created.Format("2006-01-02 15:04")
	}

	area := geospatial.Area(req.Polygon)
	display, _ := units.ToDisplay(area, req.Unit)

	geometry, err := geospatial.MarshalFeature(req.Polygon, map[string]interface{}{
		"id":             id.String(),
		"name":           name,
		"area_sq_meters": area,
		"unit":           string(req.Unit),
		"display_area":   display,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry: %w", err)
	}

	m := &Measurement{
		ID:              id,
		Name:            name,
		Geometry:        geometry,
		VertexCount:     len(req.Polygon),
		AreaSqMeters:    area,
		PerimeterMeters: geospatial.Perimeter(req.Polygon),
		Unit:            req.Unit,
		DisplayArea:     display,
		CreatedAt:       created,
	}

	// The row is written once, already carrying its archive key.
	s.archiveGeometry(ctx, m)

	if err := s.repo.Create(ctx, m); err != nil {
		s.discardArchive(m)
		return nil, fmt.Errorf("failed to save measurement: %w", err)
	}

	s.logger.Info("measurement saved",
		zap.String("id", id.String()),
		zap.Int("vertices", m.VertexCount),
		zap.Float64("area_sq_meters", area))

	return m, nil
}

// archiveGeometry uploads the feature to S3 and sets the archive key on m.
// Failures are logged and leave m without an archive key.
func (s *measurementService) archiveGeometry(ctx context.Context, m *Measurement) {
	if s.archive == nil {
		return
	}

	key := s.archiveKey(m.ID)
	if err := s.archive.Upload(ctx, s.opts.Bucket, key, bytes.NewReader(m.Geometry)); err != nil {
		s.logger.Warn("measurement archive upload failed",
			zap.String("id", m.ID.String()),
			zap.String("bucket", s.opts.Bucket),
			zap.Error(err))
		return
	}

	m.ArchiveKey = &key
	s.logger.Info("measurement archived", zap.String("id", m.ID.String()), zap.String("key", key))
}

// discardArchive removes the object uploaded for a measurement that was
// never stored.
func (s *measurementService) discardArchive(m *Measurement) {
	if s.archive == nil || m.ArchiveKey == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.archive.Delete(ctx, s.opts.Bucket, *m.ArchiveKey); err != nil {
		s.logger.Warn("failed to remove orphaned archive",
			zap.String("id", m.ID.String()),
			zap.String("key", *m.ArchiveKey),
			zap.Error(err))
	}
}

func (s *measurementService) archiveKey(id uuid.UUID) string {
	return path.Join(s.opts.Prefix, id.String()+".geojson")
}

func (s *measurementService) Get(ctx context.Context, id uuid.UUID) (*Measurement, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *measurementService) List(ctx context.Context, filter ListFilter) ([]Measurement, error) {
	return s.repo.List(ctx, filter)
}

func (s *measurementService) Delete(ctx context.Context, id uuid.UUID) error {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.archive != nil && m.ArchiveKey != nil {
		if err := s.archive.Delete(ctx, s.opts.Bucket, *m.ArchiveKey); err != nil {
			s.logger.Warn("failed to delete archived geometry",
				zap.String("id", id.String()),
				zap.Error(err))
		}
	}
	return nil
}

func (s *measurementService) Export(ctx context.Context, format ExportFormat, w io.Writer) error {
	var write func(io.Writer, []Measurement) error
	switch format {
	case FormatCSV:
		write = WriteCSV
	case FormatXLSX:
		write = WriteXLSX
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	measurements, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return err
	}
	return write(w, measurements)
}

// ArchiveURL returns a time-limited download link for the archived feature.
func (s *measurementService) ArchiveURL(ctx context.Context, id uuid.UUID) (string, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if s.archive == nil || m.ArchiveKey == nil {
		return "", fmt.Errorf("%w: measurement %s has no archive", ErrNotFound, id)
	}
	return s.archive.GetPresignedURL(ctx, s.opts.Bucket, *m.ArchiveKey, s.opts.URLExpiry)
}
