package verifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lysyi3m/moltdir/app/portal"
)

const DefaultAnthropicModel = "claude-sonnet-4-5"

type AnthropicOptions struct {
	APIKey   string
	Model    string
	BaseURL  string
	Criteria string
	// MaxRetries overrides the SDK default when >= 0.
	MaxRetries int
}

// AnthropicClassifier asks a Claude model through the Messages API.
type AnthropicClassifier struct {
	client   anthropic.Client
	model    string
	criteria string
}

var _ Classifier = (*AnthropicClassifier)(nil)

func NewAnthropicClassifier(httpClient *http.Client, opts AnthropicOptions) (*AnthropicClassifier, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(httpClient))
	}
	if opts.MaxRetries >= 0 {
		clientOpts = append(clientOpts, option.WithMaxRetries(opts.MaxRetries))
	}

	model := opts.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	return &AnthropicClassifier{
		client:   anthropic.NewClient(clientOpts...),
		model:    model,
		criteria: opts.Criteria,
	}, nil
}

func (c *AnthropicClassifier) Name() string {
	return "anthropic:" + c.model
}

func (c *AnthropicClassifier) Classify(ctx context.Context, req Request) (Verdict, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 300,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req, c.criteria))),
		},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: anthropic request: %w", portal.ErrVerifierFailure, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return parseVerdict(text.String())
}
