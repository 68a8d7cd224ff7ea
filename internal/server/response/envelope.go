// Package response writes the JSON envelope every HTTP endpoint returns and
// maps errors onto it.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"edu-platform/backend/internal/apperr"
)

// TimestampLayout renders envelope timestamps as yyyy-MM-dd HH:mm:ss.
const TimestampLayout = "2006-01-02 15:04:05"

// Envelope is the body of every JSON response.
type Envelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

var now = time.Now

// New returns an envelope for code with its catalog message and data.
func New(code apperr.Code, data any) Envelope {
	return Envelope{Code: code.Int(), Message: code.Message(), Data: data, Timestamp: now().Format(TimestampLayout)}
}

// Success returns a Success envelope carrying data.
func Success(data any) Envelope { return New(apperr.Success, data) }

// WriteJSON writes env with the given status.
func WriteJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("response: encode envelope", "error", err)
	}
}

// OK writes a 200 Success envelope carrying data.
func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Success(data))
}
