// Package location consumes live GPS fixes from a device and hands the
// accepted ones to the editor, one at a time.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
)

var (
	// ErrLocationUnavailable means the device could not produce a position.
	ErrLocationUnavailable = errors.New("location unavailable")
	// ErrStreamClosed marks a normal end of the fix stream.
	ErrStreamClosed = errors.New("location stream closed")
	// ErrInaccurateFix is reported for fixes above the accuracy threshold.
	ErrInaccurateFix = errors.New("location fix too inaccurate")
)

// Fix is a single position report.
type Fix struct {
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	AccuracyMeters float64   `json:"accuracy"`
	Timestamp      time.Time `json:"timestamp"`
}

// Vertex returns the fix position.
func (f Fix) Vertex() geospatial.Vertex {
	return geospatial.Vertex{Lat: f.Lat, Lng: f.Lng}
}

// FixError is a device-side positioning failure (permission denied, timeout,
// no satellite lock). The stream stays usable after one.
type FixError struct {
	Code    string
	Message string
}

func (e *FixError) Error() string {
	return fmt.Sprintf("location unavailable (%s): %s", e.Code, e.Message)
}

func (e *FixError) Unwrap() error {
	return ErrLocationUnavailable
}

// Source yields fixes in arrival order. Next blocks until a fix, a
// recoverable *FixError, ErrStreamClosed or a fatal error is available.
type Source interface {
	Next(ctx context.Context) (Fix, error)
}

// Handler applies one accepted fix. Follow does not read the next fix until
// the handler returns.
type Handler func(ctx context.Context, fix Fix) error

// ErrorHandler is told about fixes that were not applied.
type ErrorHandler func(err error)

// Follower drains a Source into a Handler.
type Follower struct {
	// MaxAccuracyMeters rejects fixes with a larger reported accuracy radius.
	// Zero disables the check.
	MaxAccuracyMeters float64
	OnError           ErrorHandler
}

// Follow reads fixes until ctx is cancelled or the source ends. Recoverable
// problems (device errors, inaccurate fixes, handler refusals) go to OnError
// and the loop continues. A broken source ends the loop with an error
// wrapping ErrLocationUnavailable.
func (f *Follower) Follow(ctx context.Context, src Source, apply Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fix, err := src.Next(ctx)
		if err != nil {
			var fixErr *FixError
			switch {
			case errors.Is(err, ErrStreamClosed):
				return nil
			case errors.As(err, &fixErr):
				f.report(err)
				continue
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, ErrLocationUnavailable):
				return err
			default:
				return fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
			}
		}

		if f.MaxAccuracyMeters > 0 && fix.AccuracyMeters > f.MaxAccuracyMeters {
			f.report(fmt.Errorf("%w: %.1fm exceeds %.1fm", ErrInaccurateFix, fix.AccuracyMeters, f.MaxAccuracyMeters))
			continue
		}

		if err := apply(ctx, fix); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.report(err)
		}
	}
}

func (f *Follower) report(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}
