// Package ai is the single chokepoint for outbound calls to the generative
// language provider. No other package performs provider requests.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultEndpointTemplate is the provider URL pattern. The {model}
	// placeholder is replaced with the configured model name.
	DefaultEndpointTemplate = "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateText"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-1.5"

	// DefaultMaxTokens bounds generation when the caller passes no limit.
	DefaultMaxTokens = 400

	defaultTimeout = 20 * time.Second

	// responses larger than this are not read further
	maxResponseBytes = 4 << 20
)

// ErrorKind classifies gateway failures.
type ErrorKind string

const (
	// KindNotConfigured means no API key is set. Callers must treat this
	// as an ordinary failure and degrade, never crash the request.
	KindNotConfigured ErrorKind = "not_configured"

	// KindUnavailable covers network errors, timeouts and non-2xx replies.
	KindUnavailable ErrorKind = "unavailable"
)

// Error is the only error type Generate returns. Orchestration layers
// branch on Kind to decide whether to fall back locally.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai gateway %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("ai gateway %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Config holds provider settings. It is constructed explicitly and passed
// in; the client never reads ambient process state.
type Config struct {
	APIKey           string
	EndpointTemplate string
	Model            string
	Timeout          time.Duration
	HTTPClient       *http.Client
}

// Client calls the provider's text generation endpoint. It holds no mutable
// state and is safe for concurrent use.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a gateway client. A missing API key is not a construction
// error: Generate reports it as KindNotConfigured so callers can degrade.
func NewClient(cfg Config) *Client {
	template := strings.TrimSpace(cfg.EndpointTemplate)
	if template == "" {
		template = DefaultEndpointTemplate
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		endpoint:   strings.ReplaceAll(template, "{model}", model),
		httpClient: httpClient,
	}
}

type generateRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"maxTokens"`
}

// Generate sends one prompt to the provider and returns normalized text.
// Every failure is reported as *Error.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Kind: KindNotConfigured, Err: fmt.Errorf("api key not set")}
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	body, err := json.Marshal(generateRequest{Prompt: prompt, MaxTokens: maxTokens})
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Err: fmt.Errorf("encode request: %w", err)}
	}
	endpoint := c.endpoint + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{Kind: KindUnavailable, Err: fmt.Errorf("provider returned %s", resp.Status)}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Err: fmt.Errorf("read response: %w", err)}
	}
	return normalizeResponse(raw), nil
}

// normalizeResponse extracts text from the known provider envelopes, tried
// in order: candidate/content/parts, legacy choices, bare string body. An
// unknown shape is returned verbatim rather than failing; downstream
// consumers must not assume clean text.
func normalizeResponse(raw []byte) string {
	var envelope struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Choices []struct {
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if len(envelope.Candidates) > 0 && len(envelope.Candidates[0].Content.Parts) > 0 {
			if text := envelope.Candidates[0].Content.Parts[0].Text; text != "" {
				return text
			}
		}
		if len(envelope.Choices) > 0 && envelope.Choices[0].Text != "" {
			return envelope.Choices[0].Text
		}
	}
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare
	}
	return string(raw)
}
