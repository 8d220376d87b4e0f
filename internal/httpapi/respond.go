package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/park285/frostfury-server/internal/obslog"
	"github.com/park285/frostfury-server/pkg/furydto"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Kind        furydto.ErrorKind `json:"kind"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	RemainingMs int64             `json:"remainingMs,omitempty"`
	Retryable   bool              `json:"retryable"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Debug("http_write_failed", zap.Error(err))
	}
}

// ok wraps a payload map with success=true.
func ok(w http.ResponseWriter, status int, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func statusFor(kind furydto.ErrorKind) int {
	switch kind {
	case furydto.KindValidation:
		return http.StatusBadRequest
	case furydto.KindNotFound:
		return http.StatusNotFound
	case furydto.KindConflict:
		return http.StatusConflict
	case furydto.KindPrecondition:
		return http.StatusPreconditionFailed
	case furydto.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	de, isDomain := furydto.AsDomain(err)
	if !isDomain {
		obslog.L().Error("http_internal_error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
			Kind:    furydto.KindInternal,
			Code:    "internal",
			Message: "server error",
		}})
		return
	}
	if de.Kind == furydto.KindTransient {
		obslog.L().Warn("http_transient_error", zap.String("path", r.URL.Path), zap.String("code", de.Code), zap.Error(de.Cause))
	}
	writeJSON(w, statusFor(de.Kind), errorEnvelope{Error: errorBody{
		Kind:        de.Kind,
		Code:        de.Code,
		Message:     de.Message,
		RemainingMs: de.RemainingMs,
		Retryable:   de.Retryable || de.Kind == furydto.KindTransient,
	}})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorEnvelope{Error: errorBody{
		Kind:    "unauthorized",
		Code:    "unauthorized",
		Message: "missing caller identity",
	}})
}

// decode reads a JSON body into dst and runs its validate tags. Failures come back
// as validation errors.
func (s *server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return invalid("invalid JSON body")
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return invalid(fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return invalid(err.Error())
	}
	return nil
}

func invalid(msg string) error {
	e := *furydto.ErrInvalidArgs
	e.Message = msg
	return &e
}

// intQuery parses an optional integer query parameter.
func intQuery(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalid(key + " must be an integer")
	}
	return n, nil
}
