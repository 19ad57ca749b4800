package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/prolynk/backend/internal/apperrors"
	"github.com/prolynk/backend/internal/middleware"
	"github.com/prolynk/backend/internal/models"
)

const (
	requestTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

var errInvalidBody = apperrors.Validation("Invalid request body")

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a single JSON document from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errInvalidBody
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}

// writeError maps err onto a status. Only classified messages reach the
// client; anything else is logged with its stack and reported as a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperrors.As(err)
	if !ok {
		e = apperrors.Internal(err)
	}
	if e.Kind == apperrors.KindInternal {
		hlog.FromRequest(r).Error().Stack().Err(err).
			Msgf("[%s %s] user=%s error=%v", r.Method, routePattern(r), middleware.GetUserID(r.Context()), err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Internal server error"))
		return
	}
	hlog.FromRequest(r).Debug().Stringer("kind", e.Kind).Str("route", routePattern(r)).Msg(e.Message)

	if len(e.Fields) > 0 {
		resp := models.NewValidationErrorResponse(e.Fields)
		resp.Error = e.Message
		writeJSON(w, e.Kind.HTTPStatus(), resp)
		return
	}
	writeJSON(w, e.Kind.HTTPStatus(), models.NewErrorResponse(e.Message))
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

func contextWithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, requestTimeout)
}
