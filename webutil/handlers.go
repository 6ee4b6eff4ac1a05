package webutil

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/coreybb/dispatch/models"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// AppHandler represents a handler function that returns an error.
type AppHandler func(w http.ResponseWriter, r *http.Request) error

// MakeHandler adapts an AppHandler to the standard http.HandlerFunc signature.
// It executes the AppHandler and handles any returned error by logging appropriately
// and sending a standardized JSON error response. Domain sentinels map to
// 400 (validation), 404 (not found) and 409 (invalid transition).
func MakeHandler(handler AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		err := handler(ww, r)
		if err == nil {
			return
		}

		logger := zap.L().With(
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		httpErr := toHTTPError(err)
		statusCode, publicMessage := httpErr.Code, httpErr.Message
		switch {
		case statusCode >= 500:
			logger.Error("unhandled internal error", zap.Error(err))
		case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrNotFound),
			errors.Is(err, sql.ErrNoRows), errors.Is(err, models.ErrInvalidTransition):
			logger.Info("request rejected", zap.Int("code", statusCode), zap.Error(err))
		default:
			fields := []zap.Field{zap.Int("code", statusCode), zap.String("msg", publicMessage)}
			if cause := errors.Unwrap(httpErr); cause != nil && cause.Error() != publicMessage {
				fields = append(fields, zap.NamedError("cause", cause))
			}
			logger.Warn("client error response", fields...)
		}

		if ww.Status() != 0 {
			// Cannot send another response, just log.
			logger.Warn("handler returned error after writing response header", zap.Error(err))
			return
		}

		RespondWithError(ww, statusCode, publicMessage)
	}
}

// toHTTPError maps an error returned by a handler to the response it produces.
func toHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, models.ErrValidation):
		return ErrBadRequestWrap(err.Error(), err)
	case errors.Is(err, models.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return ErrNotFoundWrap("", err)
	case errors.Is(err, models.ErrInvalidTransition):
		return ErrConflict(err.Error())
	default:
		return ErrInternalServerWrap("unhandled internal error", err)
	}
}
