package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"drivelens/internal/domain"
	"drivelens/internal/logging"
)

const maxRequestBody = 1 << 20

type errorResponse struct {
	Error   domain.ErrorKind `json:"error"`
	Message string           `json:"message"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindAuthRequired:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindUnsupported:
		return http.StatusUnsupportedMediaType
	case domain.KindInvalid:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindFetchFailed:
		return http.StatusBadGateway
	case domain.KindParseFailed:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := StatusOf(kind)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context()).Error("request failed", zap.Error(err))
	}
	if kind == "" {
		writeJSON(w, status, errorResponse{Error: "Internal", Message: "internal server error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: kind, Message: domain.MessageOf(err)})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.Invalid("invalid request body")
}
