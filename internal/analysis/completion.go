// Package analysis turns the savings state into coaching prompts and fetches
// generated text from a completion service with a bounded retry policy.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// RoleUser is the only role the coaching prompts use.
const RoleUser = "user"

type (
	Part struct {
		Text string `json:"text"`
	}

	Content struct {
		Role  string `json:"role,omitempty"`
		Parts []Part `json:"parts"`
	}

	// Request is the generateContent request body.
	Request struct {
		Contents []Content `json:"contents"`
	}

	Candidate struct {
		Content Content `json:"content"`
	}

	// Response is the subset of the generateContent response we read.
	Response struct {
		Candidates []Candidate `json:"candidates"`
	}
)

// Text returns candidates[0].content.parts[0].text, or "" when any level
// is missing.
func (r Response) Text() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

// NewRequest builds a request with one user message per text.
func NewRequest(texts ...string) Request {
	req := Request{Contents: make([]Content, 0, len(texts))}
	for _, t := range texts {
		req.Contents = append(req.Contents, Content{Role: RoleUser, Parts: []Part{{Text: t}}})
	}
	return req
}

// Completer sends one request and returns the generated text. Any error is
// treated as retryable by the caller.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ErrNotConfigured is returned by NotConfigured.
var ErrNotConfigured = errors.New("no completion service configured (set ANALYSIS_ENDPOINT or GEMINI_API_KEY)")

// NotConfigured is the completer used when neither a proxy endpoint nor an
// API key is available. It fails without retrying.
var NotConfigured = CompleterFunc(func(context.Context, Request) (string, error) {
	return "", Permanent(ErrNotConfigured)
})

// StatusError is returned for a non-2xx completion response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion service returned %d: %s", e.StatusCode, e.Body)
}

// HTTPCompleter posts the request as JSON to URL. Point it at the local
// /api/analyze proxy, or straight at generateContent with APIKey set.
type HTTPCompleter struct {
	URL    string
	APIKey string
	Client *http.Client
}

func NewHTTPCompleter(url, apiKey string, timeout time.Duration) *HTTPCompleter {
	return &HTTPCompleter{
		URL:    url,
		APIKey: apiKey,
		Client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPCompleter) Complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-goog-api-key", c.APIKey)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("post completion: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read completion: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 200)}
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	return out.Text(), nil
}

// GenAICompleter calls the generative-language API through the official SDK.
type GenAICompleter struct {
	client *genai.Client
	model  string
}

func NewGenAICompleter(ctx context.Context, apiKey, model string) (*GenAICompleter, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-1.5-flash-latest"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAICompleter{client: client, model: model}, nil
}

func (g *GenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.Contents))
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			contents = append(contents, genai.NewContentFromText(p.Text, genai.Role(c.Role)))
		}
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
