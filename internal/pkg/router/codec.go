package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/bloodsync/bloodsync/internal/pkg/validator"
)

type errorResponse struct {
	Message string            `json:"message" example:"Reset code has expired"`
	Error   map[string]string `json:"error,omitempty"`
}

type successResponse struct {
	Message string         `json:"message" example:"Request has been processed"`
	Data    any            `json:"data" swaggertype:"object"`
	Meta    map[string]any `json:"meta,omitempty" swaggertype:"object"`
}

// Payloads may implement these to shape the envelope.
type (
	messager    interface{ Message() string }
	metaer      interface{ Meta() map[string]any }
	statusCoder interface{ StatusCode() int }
)

func writeError(w http.ResponseWriter, err error) {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	resp := errorResponse{Message: gerr.Msg(), Error: gerr.Fields()}

	var verr validator.V10ValidationError
	if errors.As(err, &verr) {
		resp.Error = verr.Values()
	}

	writeJSON(w, resp, gerr.StatusCode())
}

func writeSuccess(w http.ResponseWriter, resp any) {
	code := http.StatusOK
	if sc, ok := resp.(statusCoder); ok {
		code = sc.StatusCode()
	}

	if resp == nil || code == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	env := successResponse{Message: "Request has been processed", Data: resp}
	if m, ok := resp.(messager); ok {
		env.Message = m.Message()
	}
	if m, ok := resp.(metaer); ok {
		env.Meta = m.Meta()
	}

	writeJSON(w, env, code)
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
