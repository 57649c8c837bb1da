package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"beyondcare/internal/app"
	"beyondcare/internal/storage"
	"beyondcare/pkg/auth"
	"beyondcare/pkg/store"
)

func newRateLimitedServer(t *testing.T, loginLimit int) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	st := store.NewMemoryStore()
	blobs, err := storage.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	a, err := app.New(app.Config{Store: st, Blobs: blobs, AI: &stubGenerator{text: "ok"}, Tokens: tokens})
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	srv, err := New(Config{App: a, RedisAddr: mr.Addr(), LoginRateLimitPerMinute: loginLimit})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	return srv.Router()
}

func TestLoginRateLimited(t *testing.T) {
	h := newRateLimitedServer(t, 3)

	body := map[string]string{"email": "nobody@example.com", "password": "whatever1"}
	for i := 0; i < 3; i++ {
		rec := doJSON(t, h, http.MethodPost, "/api/login", "", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d status = %d, want 400", i+1, rec.Code)
		}
	}
	rec := doJSON(t, h, http.MethodPost, "/api/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("limited attempt status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on 429")
	}
}

func TestRegisterRateLimitIndependentOfLogin(t *testing.T) {
	h := newRateLimitedServer(t, 1)

	// exhaust the login window
	body := map[string]string{"email": "x@example.com", "password": "whatever1"}
	doJSON(t, h, http.MethodPost, "/api/login", "", body)
	rec := doJSON(t, h, http.MethodPost, "/api/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second login status = %d, want 429", rec.Code)
	}

	// registration still allowed: separate window
	rec = doJSON(t, h, http.MethodPost, "/api/register", "", map[string]string{
		"name": "X", "email": "x@example.com", "password": "secret-pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
}
