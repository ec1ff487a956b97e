package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"patientledger/core/errs"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a store error kind onto an HTTP status.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindAlreadyExists, errs.KindConflict:
		return http.StatusConflict
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUnauthorized:
		return http.StatusForbidden
	case errs.KindInvalidArgument:
		return http.StatusBadRequest
	case errs.KindLedgerUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)
	body := errorBody{Error: string(kind)}
	switch kind {
	case errs.KindInvalidArgument, errs.KindUnauthorized:
		body.Message = err.Error()
	case "":
		body.Error = "Internal"
	}
	if status >= 500 {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		if kind == errs.KindLedgerUnavailable {
			w.Header().Set("Retry-After", "1")
		}
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body strictly into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.KindInvalidArgument, "http.decode", "", fmt.Errorf("malformed body: %w", err))
	}
	if dec.More() {
		return errs.Wrap(errs.KindInvalidArgument, "http.decode", "", errors.New("trailing data after body"))
	}
	return nil
}
