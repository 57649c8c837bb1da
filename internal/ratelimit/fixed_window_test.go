package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestFixedWindowLimiter(t *testing.T) {
	srv := miniredis.RunT(t)
	limiter, err := NewFixedWindowLimiter(srv.Addr(), "", "test:ratelimit", 2, time.Second)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if !limiter.Allow("ip-1") {
		t.Fatal("first request should pass")
	}
	if !limiter.Allow("ip-1") {
		t.Fatal("second request should pass")
	}
	if limiter.Allow("ip-1") {
		t.Fatal("third request should be blocked")
	}
	if !limiter.Allow("ip-2") {
		t.Fatal("separate key should have its own quota")
	}
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	srv := miniredis.RunT(t)
	limiter, err := NewFixedWindowLimiter(srv.Addr(), "", "test:ratelimit", 1, time.Second)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	srv.Close()
	if limiter.Allow("ip-1") {
		t.Fatal("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterRequiresAddr(t *testing.T) {
	if limiter, err := NewFixedWindowLimiter("", "", "test:ratelimit", 1, time.Second); err == nil || limiter != nil {
		t.Fatal("expected constructor error for empty redis addr")
	}
}

func TestFixedWindowLimiterRequiresPositiveLimit(t *testing.T) {
	if _, err := NewFixedWindowLimiter("127.0.0.1:6379", "", "", 0, time.Second); err == nil {
		t.Fatal("expected constructor error for zero limit")
	}
}
