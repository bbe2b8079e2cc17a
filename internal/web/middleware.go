package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/thoreinstein/siteconf/internal/guard"
)

// logRequests logs one line per request at debug level, warn for 5xx.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := s.logger.Debug
		if ww.Status() >= http.StatusInternalServerError {
			level = s.logger.Warn
		}
		level("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// authenticate requires an operator credential in the Authorization header
// and stores its claims in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		credential, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || credential == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="siteconf"`)
			writeError(w, http.StatusUnauthorized, "missing bearer credential")
			return
		}
		claims, err := s.signer.Authenticate(credential)
		if err != nil {
			s.logger.Debug("rejected credential", "error", err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="siteconf", error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "invalid bearer credential")
			return
		}
		next.ServeHTTP(w, r.WithContext(guard.WithClaims(r.Context(), claims)))
	})
}
