// Package app orchestrates the health assistant's core flows: account
// management, AI-answered interactions with deterministic fallback, and the
// report ingestion pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"beyondcare/internal/storage"
	"beyondcare/internal/util"
	"beyondcare/pkg/advice"
	"beyondcare/pkg/ai"
	"beyondcare/pkg/auth"
	"beyondcare/pkg/domain"
	"beyondcare/pkg/prompt"
	"beyondcare/pkg/store"
)

const (
	// DefaultMaxUploadBytes caps uploaded report files at 10 MiB.
	DefaultMaxUploadBytes = 10 << 20

	chatMaxTokens   = 400
	reportMaxTokens = 600

	// fallback summaries carry the first part of the raw text behind a
	// fixed marker so readers can tell them from AI output
	fallbackSummaryMarker = "AI unavailable. Raw text:\n"
	fallbackSummaryChars  = 1000

	historyPageSize = 100
)

// Generator produces text for a prompt. *ai.Client satisfies it; tests
// substitute doubles.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Config wires the application's collaborators.
type Config struct {
	Store          store.Store
	Blobs          storage.BlobStore
	AI             Generator
	Tokens         *auth.TokenIssuer
	MaxUploadBytes int64
}

// App is the core application service.
type App struct {
	store          store.Store
	blobs          storage.BlobStore
	ai             Generator
	tokens         *auth.TokenIssuer
	maxUploadBytes int64
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Blobs == nil {
		return nil, errors.New("blob store required")
	}
	if cfg.AI == nil {
		return nil, errors.New("ai generator required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token issuer required")
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &App{
		store:          cfg.Store,
		blobs:          cfg.Blobs,
		ai:             cfg.AI,
		tokens:         cfg.Tokens,
		maxUploadBytes: maxBytes,
	}, nil
}

// MaxUploadBytes returns the configured upload cap.
func (a *App) MaxUploadBytes() int64 { return a.maxUploadBytes }

// Register creates a new account.
func (a *App) Register(name, email, password string) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" || password == "" {
		return domain.User{}, ErrNameEmailPasswordRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Login checks credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	user, found, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if !found || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Authenticate resolves a session token to its user.
func (a *App) Authenticate(token string) (domain.User, error) {
	userID, err := a.tokens.Verify(token)
	if err != nil {
		return domain.User{}, ErrUnauthorized
	}
	user, found, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !found {
		return domain.User{}, ErrUnauthorized
	}
	return user, nil
}

// Ask answers a free-text chat prompt, falling back to keyword triage when
// the AI gateway fails.
func (a *App) Ask(ctx context.Context, user domain.User, promptText string) (domain.Answer, error) {
	return a.answer(ctx, user, domain.InteractionChat, promptText, promptText, func() string {
		return advice.SymptomPredict(promptText)
	})
}

// CheckSymptoms answers a symptom description.
func (a *App) CheckSymptoms(ctx context.Context, user domain.User, symptoms string) (domain.Answer, error) {
	return a.answer(ctx, user, domain.InteractionSymptoms, symptoms, prompt.ForSymptoms(symptoms), func() string {
		return advice.SymptomPredict(symptoms)
	})
}

// BMIRequest carries the inputs of a BMI evaluation. BMI may be supplied
// directly or computed from weight and height.
type BMIRequest struct {
	Weight float64 `json:"weight"`
	Height float64 `json:"height"`
	Age    int     `json:"age"`
	Gender string  `json:"gender"`
	BMI    float64 `json:"bmi"`
}

// EvaluateBMI answers a BMI evaluation, falling back to the fixed advice
// bands when the AI gateway fails.
func (a *App) EvaluateBMI(ctx context.Context, user domain.User, req BMIRequest) (domain.Answer, error) {
	bmi := req.BMI
	if bmi == 0 && req.Weight > 0 && req.Height > 0 {
		bmi = advice.BMI(req.Weight, req.Height)
	}
	input := fmt.Sprintf("weight=%g height=%g age=%d gender=%s bmi=%g", req.Weight, req.Height, req.Age, req.Gender, bmi)
	return a.answer(ctx, user, domain.InteractionBMI, input, prompt.ForBMI(bmi, req.Age, req.Gender), func() string {
		value := bmi
		if req.Weight > 0 && req.Height > 0 {
			value = advice.BMI(req.Weight, req.Height)
		}
		return fmt.Sprintf("BMI %.1f — %s", value, advice.ClassifyBMI(value))
	})
}

// answer runs one assistant interaction: generate externally, degrade to the
// local fallback on any gateway error, and record a history entry for every
// successful answer on either path.
func (a *App) answer(ctx context.Context, user domain.User, kind domain.InteractionType, input, promptText string, fallback func() string) (domain.Answer, error) {
	text, err := a.ai.Generate(ctx, promptText, chatMaxTokens)
	if err != nil {
		var aiErr *ai.Error
		if !errors.As(err, &aiErr) {
			return domain.Answer{}, fmt.Errorf("generate: %w", err)
		}
		slog.Info("ai fallback", "interaction", string(kind), "kind", string(aiErr.Kind))
		local := fallback()
		if err := a.recordHistory(user, kind, input, local); err != nil {
			return domain.Answer{}, err
		}
		return domain.Answer{Source: domain.SourceLocal, Text: local}, nil
	}
	if err := a.recordHistory(user, kind, input, text); err != nil {
		return domain.Answer{}, err
	}
	return domain.Answer{Source: domain.SourceExternal, Text: text}, nil
}

func (a *App) recordHistory(user domain.User, kind domain.InteractionType, input, response string) error {
	entry := domain.HistoryEntry{
		ID:        util.NewID(),
		OwnerID:   user.ID,
		Type:      kind,
		Input:     input,
		Response:  response,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.AppendHistory(entry); err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// ListHistory returns the user's latest interactions, newest first.
func (a *App) ListHistory(user domain.User) ([]domain.HistoryEntry, error) {
	return a.store.ListHistoryByOwner(user.ID, historyPageSize)
}
