package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fairgrounds/deltashare/pkg/errors"
	"github.com/fairgrounds/deltashare/utils"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	scopeCtxKey
)

const headerRequestID = "X-Request-Id"

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func scopeFrom(ctx context.Context) *Scope {
	if scope, ok := ctx.Value(scopeCtxKey).(*Scope); ok {
		return scope
	}
	return nil
}

// requestID assigns a ULID to every request and echoes it in the response
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := utils.GenerateULIDString()
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// statusRecorder captures the response status for the access log
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logRequests writes one access log line per request. The line carries
// method, path, status and duration; query strings and headers stay out
// of the log because page tokens travel in the query.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info().
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}

// recoverer converts handler panics into a plain internal error response
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().
					Str("request_id", requestIDFrom(r.Context())).
					Interface("panic", rec).
					Msg("Handler panicked")
				writeError(w, r, s.logger, errors.New(errors.CommonInternal, "internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate enforces bearer authentication and attaches the token
// scope to the request context. Missing, malformed and unknown tokens
// produce an identical response; the presented value is never logged.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, r, s.logger, errors.New(ErrMissingToken, "missing bearer token"))
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, r, s.logger, errors.New(ErrInvalidToken, "invalid bearer token"))
			return
		}

		scope, ok := s.tokens.Lookup(r.Context(), token)
		if !ok {
			writeError(w, r, s.logger, errors.New(ErrInvalidToken, "invalid bearer token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), scopeCtxKey, scope)))
	})
}
