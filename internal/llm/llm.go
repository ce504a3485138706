// Package llm generates narrative text through an Ollama-compatible chat
// endpoint. A disabled client stands in when no local model is available
// so report generation still completes with placeholder text.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gridata-nz/population.report/internal/httputil"
	"github.com/gridata-nz/population.report/internal/monitoring"
)

// Client produces text from a prompt.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
	Enabled() bool
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// OllamaClient talks to an Ollama chat endpoint with streaming disabled,
// so each prompt yields a single complete response.
type OllamaClient struct {
	HTTP      httputil.Client
	URL       string
	ModelName string
}

// NewOllamaClient returns a client for the given chat endpoint and model.
func NewOllamaClient(httpClient httputil.Client, url, model string) *OllamaClient {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(nil)
	}
	return &OllamaClient{HTTP: httpClient, URL: url, ModelName: model}
}

// Generate sends the prompt as a single user message and returns the
// model's reply content.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	monitoring.Logf("Querying LLM (%s)...", c.ModelName)

	body, err := json.Marshal(chatRequest{
		Model:    c.ModelName,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}

	var parsed chatResponse
	if err := httputil.ReadJSON(resp, &parsed); err != nil {
		return "", fmt.Errorf("chat response: %w", err)
	}
	if parsed.Message.Content == "" {
		return "", fmt.Errorf("chat response from %s had no message content", c.URL)
	}
	return parsed.Message.Content, nil
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string { return c.ModelName }

// Enabled reports that this client performs real generation.
func (c *OllamaClient) Enabled() bool { return true }

// DisabledClient echoes a tagged excerpt of each prompt instead of
// calling a model.
type DisabledClient struct{}

// Generate returns "[LLM disabled]" followed by the first non-blank
// prompt line, truncated to 200 characters.
func (DisabledClient) Generate(_ context.Context, prompt string) (string, error) {
	firstLine := ""
	for _, line := range strings.Split(prompt, "\n") {
		if strings.TrimSpace(line) != "" {
			firstLine = line
			break
		}
	}
	if runes := []rune(firstLine); len(runes) > 200 {
		firstLine = string(runes[:200]) + "..."
	}
	return "[LLM disabled] " + firstLine, nil
}

// Model identifies the placeholder client in report metadata.
func (DisabledClient) Model() string { return "disabled" }

// Enabled reports that no real generation happens.
func (DisabledClient) Enabled() bool { return false }

// CleanOutput recovers the reply text from clients that stringify a whole
// response object, producing wrappers like `content='...' thinking=None`.
// Text without such a wrapper is returned unchanged.
func CleanOutput(text string) string {
	for _, quote := range []string{`"`, `'`} {
		pattern := "content=" + quote
		start := strings.Index(text, pattern)
		if start < 0 {
			continue
		}
		start += len(pattern)
		end := strings.LastIndex(text, quote+", thinking=None")
		if end < start {
			continue
		}
		return unescape(text[start:end])
	}
	return text
}

// unescape interprets backslash escapes (\n, \t, \uXXXX) in s.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	// \' is not a valid escape inside a double-quoted literal
	s = strings.ReplaceAll(s, `\'`, `'`)
	quoted := `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	out, err := strconv.Unquote(quoted)
	if err != nil {
		return s
	}
	return out
}
