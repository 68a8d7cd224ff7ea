// Package middleware holds the ordered HTTP request stages: request id,
// recovery, access logging, CORS, body limits, the authentication gate and
// the access policy. A stage ends the request by not calling next.
package middleware

import "net/http"

// Stage wraps a handler.
type Stage func(http.Handler) http.Handler

// Chain wraps h so stages run in the order given; the first stage is outermost.
func Chain(h http.Handler, stages ...Stage) http.Handler {
	for i := len(stages) - 1; i >= 0; i-- {
		if stages[i] != nil {
			h = stages[i](h)
		}
	}
	return h
}
