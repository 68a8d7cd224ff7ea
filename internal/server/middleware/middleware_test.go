package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	identitydomain "edu-platform/backend/internal/identity/domain"
	"edu-platform/backend/internal/policy/domain"
	"edu-platform/backend/internal/policy/engine"
	"edu-platform/backend/internal/security"
	"edu-platform/backend/internal/server/reqctx"
	telemetrydomain "edu-platform/backend/internal/telemetry/domain"
)

func newCodec(t *testing.T) *security.TokenCodec {
	t.Helper()
	codec, err := security.NewTestTokenCodec()
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	return codec
}

func newPolicy(t *testing.T, authz engine.Authorizer) *engine.AccessPolicy {
	t.Helper()
	rules := append(domain.DefaultPublicRules(), domain.DefaultAuthenticatedRules()...)
	table, err := engine.NewRouteTable(rules)
	if err != nil {
		t.Fatalf("NewRouteTable: %v", err)
	}
	return engine.NewAccessPolicy(table, authz)
}

type recordingEmitter struct {
	events chan *telemetrydomain.AuthEvent
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{events: make(chan *telemetrydomain.AuthEvent, 8)}
}

func (e *recordingEmitter) Emit(_ context.Context, ev *telemetrydomain.AuthEvent) error {
	e.events <- ev
	return nil
}

func (e *recordingEmitter) next(t *testing.T) *telemetrydomain.AuthEvent {
	t.Helper()
	select {
	case ev := <-e.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event emitted")
		return nil
	}
}

// principalProbe records whether the handler ran and which principal it saw.
type principalProbe struct {
	called    bool
	principal *identitydomain.Principal
}

func (p *principalProbe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.called = true
	p.principal, _ = reqctx.PrincipalFrom(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func TestChain_Order(t *testing.T) {
	var order []string
	stage := func(name string) Stage {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }),
		stage("a"), nil, stage("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := strings.Join(order, ","); got != "a,b,handler" {
		t.Errorf("order = %s", got)
	}
}

func TestAuthenticate_ValidToken(t *testing.T) {
	codec := newCodec(t)
	token, _, err := codec.Issue(42, "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	probe := &principalProbe{}
	h := Authenticate(codec, AuthOptions{})(probe)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !probe.called || probe.principal == nil {
		t.Fatal("handler should see a principal")
	}
	if probe.principal.UserID != 42 || probe.principal.Username != "alice" || len(probe.principal.Authorities) != 0 {
		t.Errorf("principal = %+v", probe.principal)
	}
}

func TestAuthenticate_NeverRejects(t *testing.T) {
	codec := newCodec(t)
	headers := []string{"", "Basic abc", "bearer x.y.z", "Bearer ", "Bearer not-a-jwt", "Bearer a.b.c"}
	for _, hdr := range headers {
		t.Run(hdr, func(t *testing.T) {
			probe := &principalProbe{}
			h := Authenticate(codec, AuthOptions{})(probe)
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if hdr != "" {
				req.Header.Set("Authorization", hdr)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if !probe.called {
				t.Fatal("gate must always forward")
			}
			if probe.principal != nil {
				t.Errorf("principal = %+v, want none", probe.principal)
			}
			if rec.Code != http.StatusNoContent {
				t.Errorf("status = %d", rec.Code)
			}
		})
	}
}

type countingVerifier struct {
	calls  int
	panics bool
}

func (v *countingVerifier) Verify(string) (*security.TokenClaims, error) {
	v.calls++
	if v.panics {
		panic("verifier exploded")
	}
	return nil, security.ErrInvalidToken
}

func TestAuthenticate_VerifiesEmptyRemainder(t *testing.T) {
	v := &countingVerifier{}
	h := Authenticate(v, AuthOptions{})(&principalProbe{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if v.calls != 1 {
		t.Errorf("Verify calls = %d, want 1", v.calls)
	}
}

func TestAuthenticate_RecoversVerifierPanic(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	v := &countingVerifier{panics: true}
	probe := &principalProbe{}
	h := Authenticate(v, AuthOptions{Logger: logger})(probe)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !probe.called || probe.principal != nil {
		t.Errorf("called=%v principal=%v", probe.called, probe.principal)
	}
	if !strings.Contains(logs.String(), "level=DEBUG") {
		t.Errorf("rejection should be logged at debug:\n%s", logs.String())
	}
}

func TestAuthenticate_KeepsExistingPrincipal(t *testing.T) {
	codec := newCodec(t)
	token, _, _ := codec.Issue(2, "bob")
	probe := &principalProbe{}
	h := Authenticate(codec, AuthOptions{})(probe)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req = req.WithContext(reqctx.WithPrincipal(req.Context(), identitydomain.NewPrincipal(1, "alice")))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if probe.principal == nil || probe.principal.UserID != 1 {
		t.Errorf("principal = %+v, want existing alice", probe.principal)
	}
}

func TestAuthenticate_EmitsRejection(t *testing.T) {
	events := newRecordingEmitter()
	h := Authenticate(newCodec(t), AuthOptions{Events: events})(&principalProbe{})
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer junk")
	h.ServeHTTP(httptest.NewRecorder(), req)

	ev := events.next(t)
	if ev.Kind != telemetrydomain.EventTokenRejected || ev.Reason != "invalid" || ev.Path != "/api/auth/me" {
		t.Errorf("event = %+v", ev)
	}
}

func pipeline(t *testing.T, probe http.Handler, authz engine.Authorizer, opts AuthOptions) http.Handler {
	t.Helper()
	return Chain(probe,
		RequestID,
		Recover(nil),
		Authenticate(newCodec(t), opts),
		Authorize(newPolicy(t, authz), opts),
	)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestPipeline_PublicRoutePermitted(t *testing.T) {
	for _, hdr := range []string{"", "Bearer not-a-jwt", "Token x"} {
		probe := &principalProbe{}
		h := pipeline(t, probe, nil, AuthOptions{})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		if hdr != "" {
			req.Header.Set("Authorization", hdr)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if !probe.called {
			t.Errorf("header %q: public handler not reached (status %d)", hdr, rec.Code)
		}
	}
}

func TestPipeline_ProtectedRouteDenied(t *testing.T) {
	probe := &principalProbe{}
	events := newRecordingEmitter()
	h := pipeline(t, probe, nil, AuthOptions{Events: events})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if probe.called {
		t.Fatal("handler must not run")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); strings.Contains(got, "Basic") || got == "" {
		t.Errorf("WWW-Authenticate = %q", got)
	}
	if rec.Header().Get("Set-Cookie") != "" {
		t.Error("stateless API must not set cookies")
	}
	body := decodeBody(t, rec)
	if body["code"] != float64(401) || body["message"] != "未授权访问" || body["data"] != nil {
		t.Errorf("body = %v", body)
	}

	kinds := map[telemetrydomain.AuthEventKind]bool{}
	kinds[events.next(t).Kind] = true
	kinds[events.next(t).Kind] = true
	if !kinds[telemetrydomain.EventTokenRejected] || !kinds[telemetrydomain.EventAccessDenied] {
		t.Errorf("events = %v", kinds)
	}
}

func TestPipeline_DefaultRouteRequiresPrincipal(t *testing.T) {
	probe := &principalProbe{}
	h := pipeline(t, probe, nil, AuthOptions{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/anything/else", nil))
	if probe.called || rec.Code != http.StatusUnauthorized {
		t.Errorf("called=%v status=%d", probe.called, rec.Code)
	}
}

type denyAll struct{}

func (denyAll) Authorize(context.Context, engine.AccessRequest) (bool, error) { return false, nil }

func TestPipeline_AuthorizerForbids(t *testing.T) {
	codec := newCodec(t)
	token, _, _ := codec.Issue(3, "carol")
	probe := &principalProbe{}
	h := pipeline(t, probe, denyAll{}, AuthOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if probe.called || rec.Code != http.StatusForbidden {
		t.Errorf("called=%v status=%d", probe.called, rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != float64(403) {
		t.Errorf("body = %v", body)
	}
}

func TestPipeline_ValidTokenReachesProtected(t *testing.T) {
	codec := newCodec(t)
	token, _, _ := codec.Issue(9, "dave")
	probe := &principalProbe{}
	h := pipeline(t, probe, nil, AuthOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !probe.called || probe.principal == nil || probe.principal.UserID != 9 {
		t.Errorf("called=%v principal=%+v", probe.called, probe.principal)
	}
}

func TestRecover_WritesInternalError(t *testing.T) {
	var logs bytes.Buffer
	h := Recover(slog.New(slog.NewTextHandler(&logs, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("secret detail")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret detail") {
		t.Error("panic value leaked to client")
	}
	if body := decodeBody(t, rec); body["code"] != float64(500) {
		t.Errorf("body = %v", body)
	}
	if !strings.Contains(logs.String(), "secret detail") {
		t.Error("panic value should be logged")
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if id := rec.Header().Get(RequestIDHeader); len(id) != 36 {
		t.Errorf("generated id = %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get(RequestIDHeader) != "abc-123" || seen != "abc-123" {
		t.Errorf("client id not reused: %q", rec.Header().Get(RequestIDHeader))
	}
}

func TestAccessLog(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	h := AccessLog(logger, "/api/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/contents/1", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	out := logs.String()
	for _, want := range []string{"status=418", "bytes=2", "client_ip=203.0.113.7"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}

	logs.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if logs.Len() != 0 {
		t.Errorf("skipped path logged: %s", logs.String())
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Errorf("remote = %q", got)
	}
	req.Header.Set("X-Real-IP", "198.51.100.2")
	if got := ClientIP(req); got != "198.51.100.2" {
		t.Errorf("x-real-ip = %q", got)
	}
}

func TestCORS_WildcardEchoesOriginWithCredentials(t *testing.T) {
	h := CORS(CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/auth/me", nil)
	preflight.Header.Set("Access-Control-Request-Method", "GET")
	preflight.Header.Set("Access-Control-Request-Headers", "Authorization")
	actual := httptest.NewRequest(http.MethodGet, "/api/health", nil)

	for name, req := range map[string]*http.Request{"preflight": preflight, "actual": actual} {
		t.Run(name, func(t *testing.T) {
			req.Header.Set("Origin", "http://a.example")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://a.example" {
				t.Errorf("Allow-Origin = %q, want echoed origin", got)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
				t.Errorf("Allow-Credentials = %q", got)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	reached := false
	h := CORS(CORSConfig{
		AllowedOrigins: []string{"https://app.example"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached = true }))

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/me", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if reached {
		t.Error("preflight should not reach the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/contents", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin must not be echoed")
	}
}

func TestMaxBytes(t *testing.T) {
	var readErr error
	h := MaxBytes(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))
	var mbe *http.MaxBytesError
	if readErr == nil || !errors.As(readErr, &mbe) {
		t.Errorf("read err = %v, want MaxBytesError", readErr)
	}
}

func TestRequireJSON(t *testing.T) {
	h := RequireJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("form body status = %d, want 415", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("json body status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("bodyless status = %d", rec.Code)
	}
}
