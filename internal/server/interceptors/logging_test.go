package interceptors

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func TestLoggingUnary(t *testing.T) {
	var logs bytes.Buffer
	interceptor := LoggingUnary(slog.New(slog.NewTextHandler(&logs, nil)), map[string]bool{healthCheck: true})

	handler := func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "nope")
	}
	_, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: protectedRPC}, handler)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("err = %v, want handler error passed through", err)
	}
	if out := logs.String(); !strings.Contains(out, "status_code=NotFound") || !strings.Contains(out, protectedRPC) {
		t.Errorf("log = %s", out)
	}

	logs.Reset()
	_, _ = interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: healthCheck}, handler)
	if logs.Len() != 0 {
		t.Errorf("skipped method was logged: %s", logs.String())
	}
}

func TestClientIP(t *testing.T) {
	testCases := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"none", context.Background(), "unknown"},
		{"forwarded", metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-forwarded-for", "203.0.113.9, 10.0.0.1")), "203.0.113.9"},
		{"real ip", metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-real-ip", "198.51.100.4")), "198.51.100.4"},
		{"peer", peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("192.0.2.8"), Port: 4242}}), "192.0.2.8"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClientIP(tc.ctx); got != tc.want {
				t.Errorf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
