package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/editor"
	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/location"
)

// StreamGPS upgrades to a websocket and feeds the device's fixes into the
// session editor. Each applied fix is answered with a snapshot; every fix
// that was not applied is answered with a rejected or error message.
func (h *Handler) StreamGPS(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if !s.attachGPS() {
		c.JSON(http.StatusConflict, gin.H{"error": "a gps stream is already attached to this session"})
		return
	}
	defer s.detachGPS()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("gps websocket upgrade failed", zap.String("session", s.ID.String()), zap.Error(err))
		return
	}

	src := location.NewWebSocketSource(conn, location.WithPongWait(h.pongWait))
	defer src.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(s.Context(), cancel)
	defer stop()
	go src.KeepAlive(ctx)

	logger := h.logger.With(zap.String("session", s.ID.String()))
	logger.Info("gps stream opened", zap.String("remote", c.Request.RemoteAddr))

	follower := location.Follower{
		MaxAccuracyMeters: h.maxAccuracyMeters,
		OnError: func(err error) {
			msg := fixFailureMessage(err)
			logger.Debug("gps fix not applied", zap.String("code", msg.Code), zap.Error(err))
			if sendErr := src.Send(msg); sendErr != nil {
				logger.Debug("failed to notify device", zap.Error(sendErr))
			}
		},
	}

	err = follower.Follow(ctx, src, func(ctx context.Context, fix location.Fix) error {
		s.touch(h.registry.now())
		snap, err := s.Dispatcher().SubmitFix(ctx, fix.Vertex())
		if err != nil {
			return err
		}
		return src.Send(location.Message{Type: location.MessageTypeSnapshot, Data: snap})
	})

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("gps stream closed")
	default:
		logger.Warn("gps stream ended", zap.Error(err))
	}
}

// fixFailureMessage turns a refused or failed fix into a device message.
func fixFailureMessage(err error) location.Message {
	var fixErr *location.FixError
	if errors.As(err, &fixErr) {
		return location.Message{Type: location.MessageTypeError, Code: fixErr.Code, Message: fixErr.Message}
	}

	code := "rejected"
	switch {
	case errors.Is(err, location.ErrInaccurateFix):
		code = "inaccurate"
	case errors.Is(err, editor.ErrNotDrawing):
		code = "not_drawing"
	case errors.Is(err, editor.ErrAppendInFlight):
		code = "busy"
	case errors.Is(err, editor.ErrStopped):
		code = "closed"
	}
	return location.Message{Type: location.MessageTypeRejected, Code: code, Message: err.Error()}
}
