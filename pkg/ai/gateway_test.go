package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:           "test-key",
		EndpointTemplate: srv.URL + "/models/{model}:generateText",
		Model:            "test-model",
	})
}

func TestGenerateCandidateEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/test-model:generateText" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing key credential, got query %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"summary text"}]}}]}`))
	})
	got, err := client.Generate(context.Background(), "hello", 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "summary text" {
		t.Fatalf("Generate = %q, want %q", got, "summary text")
	}
}

func TestGenerateChoicesEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"text":"legacy answer"}]}`))
	})
	got, err := client.Generate(context.Background(), "hello", 100)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "legacy answer" {
		t.Fatalf("Generate = %q, want %q", got, "legacy answer")
	}
}

func TestGenerateBareStringBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"plain answer"`))
	})
	got, err := client.Generate(context.Background(), "hello", 100)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "plain answer" {
		t.Fatalf("Generate = %q, want %q", got, "plain answer")
	}
}

func TestGenerateUnknownShapeReturnsBody(t *testing.T) {
	body := `{"unexpected":{"shape":true}}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})
	got, err := client.Generate(context.Background(), "hello", 100)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != body {
		t.Fatalf("Generate = %q, want raw body %q", got, body)
	}
}

func TestGenerateSendsPromptAndMaxTokens(t *testing.T) {
	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.Write([]byte(`"ok"`))
	})
	if _, err := client.Generate(context.Background(), "describe symptoms", 600); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := `{"prompt":"describe symptoms","maxTokens":600}`
	if gotBody != want {
		t.Fatalf("request body = %q, want %q", gotBody, want)
	}
}

func TestGenerateMissingKey(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Generate(context.Background(), "hello", 100)
	var aiErr *Error
	if !errors.As(err, &aiErr) || aiErr.Kind != KindNotConfigured {
		t.Fatalf("expected KindNotConfigured, got %v", err)
	}
}

func TestGenerateNon2xx(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	_, err := client.Generate(context.Background(), "hello", 100)
	var aiErr *Error
	if !errors.As(err, &aiErr) || aiErr.Kind != KindUnavailable {
		t.Fatalf("expected KindUnavailable, got %v", err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`"late"`))
	}))
	t.Cleanup(srv.Close)
	client := NewClient(Config{
		APIKey:           "test-key",
		EndpointTemplate: srv.URL + "/models/{model}:generateText",
		Timeout:          20 * time.Millisecond,
	})
	_, err := client.Generate(context.Background(), "hello", 100)
	var aiErr *Error
	if !errors.As(err, &aiErr) || aiErr.Kind != KindUnavailable {
		t.Fatalf("expected KindUnavailable on timeout, got %v", err)
	}
}
