package domain

import "time"

// InteractionType identifies one kind of assistant interaction.
type InteractionType string

const (
	InteractionChat     InteractionType = "chat"
	InteractionSymptoms InteractionType = "symptoms"
	InteractionBMI      InteractionType = "bmi"
)

// AnswerSource tags whether an answer came from the external AI provider
// or from the local deterministic fallback.
type AnswerSource string

const (
	SourceExternal AnswerSource = "external"
	SourceLocal    AnswerSource = "local"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Report describes one uploaded medical document and its summary.
// Records are append-only: a report is created once after summarization
// and never mutated.
type Report struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"ownerId"`
	OriginalFilename string    `json:"originalFilename"`
	StoredFilename   string    `json:"-"`
	MediaType        string    `json:"mediaType"`
	SizeBytes        int64     `json:"sizeBytes"`
	Summary          string    `json:"summary"`
	KeyFindings      []string  `json:"keyFindings,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// HistoryEntry is an append-only log record of one answered interaction.
type HistoryEntry struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"ownerId"`
	Type      InteractionType `json:"type"`
	Input     string          `json:"input"`
	Response  string          `json:"response"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Answer is the transient result of one assistant request. Source is always
// set so callers can tell AI-derived text from deterministic fallback text.
type Answer struct {
	Source AnswerSource `json:"source"`
	Text   string       `json:"answer"`
}
