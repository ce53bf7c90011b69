package interceptors

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

func TestClientIP(t *testing.T) {
	md := func(kv ...string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs(kv...))
	}
	peerCtx := peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.9"), Port: 5555},
	})
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"x-forwarded-for", md("x-forwarded-for", "203.0.113.1"), "203.0.113.1"},
		{"x-forwarded-for list", md("x-forwarded-for", "203.0.113.1, 10.0.0.1"), "203.0.113.1"},
		{"x-real-ip", md("x-real-ip", " 198.51.100.2 "), "198.51.100.2"},
		{"precedence", md("x-forwarded-for", "203.0.113.1", "x-real-ip", "198.51.100.2"), "203.0.113.1"},
		{"peer", peerCtx, "10.0.0.9"},
		{"unknown", context.Background(), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClientIP(tt.ctx); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.7:41000"
	if got := HTTPClientIP(r); got != "192.0.2.7" {
		t.Errorf("RemoteAddr: got %q", got)
	}
	r.Header.Set("X-Real-IP", "198.51.100.2")
	if got := HTTPClientIP(r); got != "198.51.100.2" {
		t.Errorf("X-Real-IP: got %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.1, 10.0.0.1")
	if got := HTTPClientIP(r); got != "203.0.113.1" {
		t.Errorf("X-Forwarded-For: got %q", got)
	}
}
