// Package llm talks to an OpenAI-compatible chat completions endpoint. The
// markup pipeline hands it rendered fragments and expects one translated
// fragment back for each, in order.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultAPIURL is the OpenAI chat completions endpoint.
	DefaultAPIURL = "https://api.openai.com/v1/chat/completions"
	// DefaultModel is used when configuration does not name one.
	DefaultModel = "gpt-4o"
	// DefaultTimeout bounds a single API round trip.
	DefaultTimeout = 120 * time.Second

	maxRetries     = 3
	baseRetryDelay = 2 * time.Second
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	APIURL         string
	APIKey         string
	Model          string
	Timeout        time.Duration
	SourceLanguage string
	TargetLanguage string
}

// Client translates batches of XML fragments through a chat completions API.
type Client struct {
	client     *http.Client
	apiURL     string
	apiKey     string
	model      string
	system     string
	retryDelay time.Duration
	log        *zap.Logger
}

// New creates a Client. The returned Translate method satisfies the
// fragment transform contract of the markup pipeline.
func New(opts Options, log *zap.Logger) *Client {
	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	} else {
		apiURL = normalizeAPIURL(apiURL)
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		client:     &http.Client{Timeout: timeout},
		apiURL:     apiURL,
		apiKey:     opts.APIKey,
		model:      model,
		system:     buildSystemPrompt(opts.SourceLanguage, opts.TargetLanguage),
		retryDelay: baseRetryDelay,
		log:        log,
	}
}

// normalizeAPIURL lets configuration point at a bare API base.
func normalizeAPIURL(url string) string {
	url = strings.TrimSuffix(url, "/")
	if strings.HasSuffix(url, "/chat/completions") {
		return url
	}
	return url + "/chat/completions"
}

func buildSystemPrompt(source, target string) string {
	from := "the source language"
	if source != "" {
		from = source
	}
	to := "English"
	if target != "" {
		to = target
	}
	return fmt.Sprintf(`You are a professional book translator. You translate XML fragments from %s to %s.

The user message is a JSON array of strings. Each string is a fragment of XHTML markup from an EPUB book. Reply with a JSON array of the same length where element N is the translation of element N.

RULES:
1. Translate only human-readable text. Keep every tag, attribute and entity exactly as it appears, including id and data-origin-len attributes.
2. A fragment may open tags it does not close, or close tags it did not open. That is expected. Never balance, add or drop tags.
3. Never merge, split, reorder or renumber fragments.
4. Reply with the bare JSON array only. No code fences, no commentary.`, from, to)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// statusError marks HTTP failures so the retry loop can tell transient
// server trouble from permanent client mistakes.
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("API returned status %d", e.code)
	}
	return fmt.Sprintf("API returned status %d: %s", e.code, e.message)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= http.StatusInternalServerError
}

// Translate sends fragments to the model and returns one translated fragment
// per input. It retries transient failures with linear backoff.
func (c *Client) Translate(ctx context.Context, fragments []string) ([]string, error) {
	if len(fragments) == 0 {
		return nil, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key is not configured")
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		out, err := c.translateOnce(ctx, fragments)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("unable to translate fragments: %w", ctx.Err())
		}

		c.log.Warn("Translation attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < maxRetries {
			select {
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, fmt.Errorf("unable to translate fragments: %w", ctx.Err())
			}
		}
	}
	return nil, fmt.Errorf("unable to translate fragments after %d attempts: %w", maxRetries, lastErr)
}

func (c *Client) translateOnce(ctx context.Context, fragments []string) ([]string, error) {
	payload, err := json.Marshal(fragments)
	if err != nil {
		return nil, fmt.Errorf("unable to encode fragments: %w", err)
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.system},
			{Role: "user", Content: string(payload)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to call API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read API response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, message: apiErrorMessage(body)}
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, fmt.Errorf("unable to parse API response: %w", err)
	}
	if chat.Error != nil {
		return nil, fmt.Errorf("API error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("API returned no choices")
	}
	if chat.Choices[0].FinishReason == "length" {
		c.log.Warn("Model output was truncated", zap.Int("fragments", len(fragments)))
	}

	out, err := decodeFragments(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if len(out) != len(fragments) {
		return nil, fmt.Errorf("model returned %d fragments, expected %d", len(out), len(fragments))
	}

	c.log.Debug("Translated fragments",
		zap.Int("fragments", len(fragments)),
		zap.Int("tokens", chat.Usage.TotalTokens))
	return out, nil
}

func apiErrorMessage(body []byte) string {
	var errResp struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		return errResp.Error.Message
	}
	return ""
}

// decodeFragments parses the model reply, stripping the code fences some
// models insist on wrapping JSON in.
func decodeFragments(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}
	var out []string
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("unable to parse model reply as fragment list: %w", err)
	}
	return out, nil
}
