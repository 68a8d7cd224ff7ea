// Package handler reports readiness over HTTP and keeps the standard gRPC
// health service in sync with the same checks.
package handler

import (
	"context"
	"net/http"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"edu-platform/backend/internal/apperr"
	"edu-platform/backend/internal/server/response"
)

// Pinger is used for readiness checks (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is used for readiness checks (e.g. the Rego authorizer).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Status values reported by Check.
const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

const checkTimeout = 2 * time.Second

// Report is the readiness result.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Checker runs readiness checks. Nil collaborators are skipped.
type Checker struct {
	pinger Pinger
	policy PolicyChecker
}

// NewChecker returns a checker. pinger and policy may be nil.
func NewChecker(pinger Pinger, policy PolicyChecker) *Checker {
	return &Checker{pinger: pinger, policy: policy}
}

// Check runs every configured check with a short timeout.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	r := Report{Status: StatusUp, Checks: map[string]string{}}
	if c.pinger != nil {
		r.Checks["database"] = statusOf(c.pinger.PingContext(ctx))
	}
	if c.policy != nil {
		r.Checks["policy"] = statusOf(c.policy.HealthCheck(ctx))
	}
	for _, s := range r.Checks {
		if s != StatusUp {
			r.Status = StatusDown
		}
	}
	return r
}

func statusOf(err error) string {
	if err != nil {
		return StatusDown
	}
	return StatusUp
}

// ServeHTTP writes the report in the response envelope: 200 when up, 503 when down.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := c.Check(r.Context())
	if report.Status == StatusUp {
		response.OK(w, report)
		return
	}
	response.WriteJSON(w, http.StatusServiceUnavailable, response.New(apperr.InternalError, report))
}

// SyncGRPC sets the overall serving status of hs from one Check.
func (c *Checker) SyncGRPC(ctx context.Context, hs *health.Server) {
	status := healthpb.HealthCheckResponse_SERVING
	if c.Check(ctx).Status != StatusUp {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
}

// WatchGRPC calls SyncGRPC every interval until ctx is done.
func (c *Checker) WatchGRPC(ctx context.Context, hs *health.Server, interval time.Duration) {
	c.SyncGRPC(ctx, hs)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SyncGRPC(ctx, hs)
		}
	}
}
