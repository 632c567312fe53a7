package daemon

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jamesainslie/sysprint/pkg/sysprint/logging"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err's kind to a status code.
func writeError(w http.ResponseWriter, err error) {
	kind := types.Kind(err)
	writeStatusError(w, statusFor(kind), message(err), kind)
}

func writeStatusError(w http.ResponseWriter, code int, msg, kind string) {
	writeJSON(w, code, ErrorBody{Error: msg, Type: kind})
}

func statusFor(kind string) int {
	switch kind {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "VALIDATION":
		return http.StatusBadRequest
	case "ARCHIVE":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// message drops the sentinel prefix from not-found and validation errors;
// the kind is reported separately.
func message(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{types.ErrValidation, types.ErrNotFound} {
		if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
			return rest
		}
	}
	return msg
}

// accessLog writes one line per request to the "api" logger.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logging.Get("api").Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
