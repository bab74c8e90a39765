package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/moltdir/app/portal"
)

const DefaultChatEndpoint = "https://api.openai.com/v1/chat/completions"

type ChatOptions struct {
	Endpoint string
	APIKey   string
	Model    string
	Criteria string
}

// ChatClassifier talks to any OpenAI-compatible chat-completions endpoint.
type ChatClassifier struct {
	endpoint   string
	apiKey     string
	model      string
	criteria   string
	httpClient *http.Client
}

var _ Classifier = (*ChatClassifier)(nil)

func NewChatClassifier(httpClient *http.Client, opts ChatOptions) (*ChatClassifier, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("chat classifier model is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultChatEndpoint
	}

	return &ChatClassifier{
		endpoint:   endpoint,
		apiKey:     opts.APIKey,
		model:      opts.Model,
		criteria:   opts.Criteria,
		httpClient: httpClient,
	}, nil
}

func (c *ChatClassifier) Name() string {
	return "chat:" + c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *ChatClassifier) Classify(ctx context.Context, req Request) (Verdict, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req, c.criteria)},
		},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: chat request: %w", portal.ErrVerifierFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Verdict{}, fmt.Errorf("%w: chat endpoint returned %s: %s",
			portal.ErrVerifierFailure, resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Verdict{}, fmt.Errorf("%w: failed to decode chat response: %w", portal.ErrVerifierFailure, err)
	}
	if len(decoded.Choices) == 0 {
		return Verdict{}, fmt.Errorf("%w: chat response has no choices", portal.ErrVerifierFailure)
	}

	return parseVerdict(decoded.Choices[0].Message.Content)
}
