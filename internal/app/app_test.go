package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"beyondcare/internal/storage"
	"beyondcare/pkg/ai"
	"beyondcare/pkg/auth"
	"beyondcare/pkg/domain"
	"beyondcare/pkg/store"
)

type fakeGenerator struct {
	mu            sync.Mutex
	text          string
	err           error
	lastPrompt    string
	lastMaxTokens int
	calls         int
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, maxTokens int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastPrompt = prompt
	g.lastMaxTokens = maxTokens
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

func newTestApp(t *testing.T, gen Generator) (*App, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	blobs, err := storage.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	a, err := New(Config{Store: mem, Blobs: blobs, AI: gen, Tokens: tokens})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, mem
}

func registerTestUser(t *testing.T, a *App) domain.User {
	t.Helper()
	user, err := a.Register("Amina", "amina@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return user
}

func TestRegisterAndLogin(t *testing.T) {
	a, _ := newTestApp(t, &fakeGenerator{text: "hi"})
	user := registerTestUser(t, a)
	if user.PasswordHash == "s3cret-pass" {
		t.Fatal("password stored in plaintext")
	}

	if _, err := a.Register("Amina", "amina@example.com", "s3cret-pass"); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("duplicate register err = %v, want ErrEmailAlreadyExists", err)
	}

	logged, token, err := a.Login("Amina@Example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != user.ID || token == "" {
		t.Fatalf("Login = %+v, token %q", logged, token)
	}

	if _, _, err := a.Login("amina@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad login err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := a.Login("nobody@example.com", "whatever-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email err = %v, want ErrInvalidCredentials", err)
	}

	authed, err := a.Authenticate(token)
	if err != nil || authed.ID != user.ID {
		t.Fatalf("Authenticate = %+v, %v", authed, err)
	}
	if _, err := a.Authenticate("garbage"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Authenticate garbage err = %v, want ErrUnauthorized", err)
	}
}

func TestAskExternalRecordsHistory(t *testing.T) {
	gen := &fakeGenerator{text: "drink water"}
	a, mem := newTestApp(t, gen)
	user := registerTestUser(t, a)

	ans, err := a.Ask(context.Background(), user, "I feel dizzy")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Source != domain.SourceExternal || ans.Text != "drink water" {
		t.Fatalf("Ask = %+v", ans)
	}
	if gen.lastMaxTokens != 400 {
		t.Fatalf("maxTokens = %d, want 400", gen.lastMaxTokens)
	}

	entries, err := mem.ListHistoryByOwner(user.ID, 10)
	if err != nil || len(entries) != 1 {
		t.Fatalf("history = %v, %v", entries, err)
	}
	if entries[0].Type != domain.InteractionChat || entries[0].Input != "I feel dizzy" || entries[0].Response != "drink water" {
		t.Fatalf("history entry = %+v", entries[0])
	}
}

func TestAskFallsBackOnGatewayError(t *testing.T) {
	gen := &fakeGenerator{err: &ai.Error{Kind: ai.KindUnavailable}}
	a, mem := newTestApp(t, gen)
	user := registerTestUser(t, a)

	ans, err := a.Ask(context.Background(), user, "I have fever and cough")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Source != domain.SourceLocal {
		t.Fatalf("source = %q, want local", ans.Source)
	}
	if ans.Text != "Flu or cold — rest, hydrate." {
		t.Fatalf("fallback text = %q", ans.Text)
	}
	// History is recorded on the fallback path too.
	entries, _ := mem.ListHistoryByOwner(user.ID, 10)
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
}

func TestAskFallsBackWhenNotConfigured(t *testing.T) {
	gen := &fakeGenerator{err: &ai.Error{Kind: ai.KindNotConfigured}}
	a, _ := newTestApp(t, gen)
	user := registerTestUser(t, a)

	ans, err := a.Ask(context.Background(), user, "anything at all")
	if err != nil {
		t.Fatalf("missing credential must not fail the request: %v", err)
	}
	if ans.Source != domain.SourceLocal {
		t.Fatalf("source = %q, want local", ans.Source)
	}
}

func TestCheckSymptomsBuildsPrompt(t *testing.T) {
	gen := &fakeGenerator{text: "see a doctor"}
	a, _ := newTestApp(t, gen)
	user := registerTestUser(t, a)

	if _, err := a.CheckSymptoms(context.Background(), user, "sore throat"); err != nil {
		t.Fatalf("CheckSymptoms: %v", err)
	}
	want := "User symptoms: sore throat\nGive likely causes, urgency level, and advice."
	if gen.lastPrompt != want {
		t.Fatalf("prompt = %q, want %q", gen.lastPrompt, want)
	}
}

func TestEvaluateBMIComputesFromWeightHeight(t *testing.T) {
	gen := &fakeGenerator{text: "balanced diet"}
	a, _ := newTestApp(t, gen)
	user := registerTestUser(t, a)

	ans, err := a.EvaluateBMI(context.Background(), user, BMIRequest{Weight: 70, Height: 175, Age: 30, Gender: "male"})
	if err != nil {
		t.Fatalf("EvaluateBMI: %v", err)
	}
	if ans.Source != domain.SourceExternal {
		t.Fatalf("source = %q", ans.Source)
	}
	if !strings.Contains(gen.lastPrompt, "BMI: 22.9") {
		t.Fatalf("prompt = %q, want computed BMI embedded", gen.lastPrompt)
	}
}

func TestEvaluateBMIFallback(t *testing.T) {
	gen := &fakeGenerator{err: &ai.Error{Kind: ai.KindUnavailable}}
	a, _ := newTestApp(t, gen)
	user := registerTestUser(t, a)

	ans, err := a.EvaluateBMI(context.Background(), user, BMIRequest{Weight: 70, Height: 175})
	if err != nil {
		t.Fatalf("EvaluateBMI: %v", err)
	}
	want := "BMI 22.9 — Normal — maintain your routine."
	if ans.Source != domain.SourceLocal || ans.Text != want {
		t.Fatalf("fallback = %+v, want %q", ans, want)
	}
}

func TestListHistoryScopedToUser(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	a, _ := newTestApp(t, gen)
	user := registerTestUser(t, a)
	other, err := a.Register("Ben", "ben@example.com", "other-pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := a.Ask(context.Background(), user, "q1"); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	entries, err := a.ListHistory(other)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("other user sees %d foreign entries", len(entries))
	}
}
