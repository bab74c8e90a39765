package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/moltdir/app/crawler"
	"github.com/lysyi3m/moltdir/app/dataset"
	"github.com/lysyi3m/moltdir/app/extract"
	"github.com/lysyi3m/moltdir/app/portal"
	"github.com/lysyi3m/moltdir/app/tasks"
)

// scriptedClassifier answers from a fixed table keyed by domain.
type scriptedClassifier struct {
	verdicts map[string]Verdict
	seen     chan Request
}

func (s *scriptedClassifier) Name() string { return "scripted" }

func (s *scriptedClassifier) Classify(ctx context.Context, req Request) (Verdict, error) {
	if s.seen != nil {
		s.seen <- req
	}
	v, ok := s.verdicts[req.Domain]
	if !ok {
		return Verdict{}, fmt.Errorf("%w: no answer for %s", portal.ErrVerifierFailure, req.Domain)
	}
	return v, nil
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		label   Label
		wantErr bool
	}{
		{"plain", `{"verdict": "agent_usable", "rationale": "Has an agent API"}`, LabelAgentUsable, false},
		{"fenced", "```json\n{\"verdict\": \"Parked\", \"rationale\": \"For sale\"}\n```", LabelParked, false},
		{"prose", `Sure. {"verdict":"for_humans","rationale":"Blog"} Hope that helps.`, LabelForHumans, false},
		{"unknown label", `{"verdict": "maybe"}`, "", true},
		{"no json", `I cannot tell.`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := parseVerdict(tt.reply)
			if tt.wantErr {
				assert.ErrorIs(t, err, portal.ErrVerifierFailure)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.label, v.Label)
			assert.NotEmpty(t, v.Rationale)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(Request{
		Domain: "moltbook.com",
		Signal: portal.Signal{Title: "Moltbook", Description: "Social network for agents", Excerpt: strings.Repeat("x", 3000)},
	}, "Sites agents use directly.")

	assert.Contains(t, prompt, "Inclusion criteria:\nSites agents use directly.")
	assert.Contains(t, prompt, "Domain: moltbook.com")
	assert.Contains(t, prompt, "Title: Moltbook")
	assert.Less(t, len(prompt), 2000)
}

func TestCheck_FailureIsUnverified(t *testing.T) {
	report := Check(context.Background(), &scriptedClassifier{}, Request{Domain: "moltzilla.com"})

	assert.False(t, report.Verified())
	assert.Equal(t, LabelUnverified, report.Verdict.Label)
	assert.ErrorIs(t, report.Err, portal.ErrVerifierFailure)
}

func TestChatClassifier_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "local-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "Domain: molthunt.app")

		fmt.Fprint(w, `{"choices": [{"message": {"role": "assistant", "content": "{\"verdict\": \"agent_usable\", \"rationale\": \"Agents list products\"}"}}]}`)
	}))
	defer server.Close()

	classifier, err := NewChatClassifier(nil, ChatOptions{Endpoint: server.URL, APIKey: "test-key", Model: "local-model"})
	require.NoError(t, err)

	v, err := classifier.Classify(context.Background(), Request{Domain: "molthunt.app"})
	require.NoError(t, err)
	assert.Equal(t, LabelAgentUsable, v.Label)
	assert.Equal(t, "Agents list products", v.Rationale)
}

func TestChatClassifier_Classify_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	classifier, err := NewChatClassifier(nil, ChatOptions{Endpoint: server.URL, Model: "local-model"})
	require.NoError(t, err)

	_, err = classifier.Classify(context.Background(), Request{Domain: "molthunt.app"})
	assert.ErrorIs(t, err, portal.ErrVerifierFailure)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestAnthropicClassifier_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "{\"verdict\": \"redirect\", \"rationale\": \"Forwards to moltbook.com\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 12}
		}`)
	}))
	defer server.Close()

	classifier, err := NewAnthropicClassifier(nil, AnthropicOptions{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "anthropic:"+DefaultAnthropicModel, classifier.Name())

	v, err := classifier.Classify(context.Background(), Request{Domain: "moltbook.net"})
	require.NoError(t, err)
	assert.Equal(t, LabelRedirect, v.Label)
}

func TestNewAnthropicClassifier_RequiresKey(t *testing.T) {
	_, err := NewAnthropicClassifier(nil, AnthropicOptions{})
	assert.Error(t, err)
}

func TestVerifier_Run(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><head><title>%s</title></head><body>page</body></html>`, r.URL.Path)
	}))
	defer server.Close()

	classifier := &scriptedClassifier{
		verdicts: map[string]Verdict{
			"moltzilla.com": {Label: LabelAgentUsable, Rationale: "Agent API"},
			"clawdeals.com": {Label: LabelForHumans, Rationale: "Newsletter"},
		},
		seen: make(chan Request, 4),
	}

	fetcher := crawler.NewFetcher(nil, crawler.FetcherOptions{Timeout: time.Second})
	v := New(classifier, fetcher, extract.NewExtractor(), tasks.NewPool(2, 5*time.Second))

	reports, err := v.Run(context.Background(), []Target{
		{Domain: "moltzilla.com", URL: server.URL + "/moltzilla"},
		{Domain: "clawdeals.com", URL: server.URL + "/clawdeals"},
		{Domain: "shellgone.io", URL: server.URL + "/down"},
	})
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Equal(t, LabelAgentUsable, reports[0].Verdict.Label)
	assert.Equal(t, LabelForHumans, reports[1].Verdict.Label)
	assert.Equal(t, LabelUnverified, reports[2].Verdict.Label)
	assert.True(t, errors.Is(reports[2].Err, portal.ErrFetchFailure))

	close(classifier.seen)
	titles := make(map[string]string)
	for req := range classifier.seen {
		titles[req.Domain] = req.Signal.Title
	}
	assert.Equal(t, "/moltzilla", titles["moltzilla.com"])
	assert.NotContains(t, titles, "shellgone.io")
}

func TestApply(t *testing.T) {
	ds := dataset.New()
	ds.AddPortal(portal.Portal{URL: "https://moltzilla.com", Trust: portal.TrustLow, Notes: "parked: thin page"})
	ds.AddPortal(portal.Portal{URL: "https://clawdeals.com", Trust: portal.TrustUntrusted})
	ds.AddPortal(portal.Portal{URL: "https://moltbook.com", Trust: portal.TrustVerified})
	ds.AddPortal(portal.Portal{URL: "https://shellgone.io", Trust: portal.TrustLow})

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	delta := Apply(ds, []Report{
		{Domain: "moltzilla.com", Verdict: Verdict{Label: LabelAgentUsable}},
		{Domain: "clawdeals.com", Verdict: Verdict{Label: LabelForHumans, Rationale: "Newsletter for founders"}},
		{Domain: "moltbook.com", Verdict: Verdict{Label: LabelParked}},
		{Domain: "shellgone.io", Verdict: Verdict{Label: LabelUnverified}, Err: portal.ErrFetchFailure},
	}, now)

	assert.Equal(t, []string{"moltzilla.com"}, delta.Changed)
	assert.Equal(t, []string{"clawdeals.com"}, delta.Removed)

	p, ok := ds.Portal("moltzilla.com")
	require.True(t, ok)
	assert.Equal(t, portal.TrustMedium, p.Trust)
	assert.Equal(t, now, *p.AuditedAt)
	assert.Empty(t, p.Notes)

	ex, ok := ds.Exclusion("clawdeals.com")
	require.True(t, ok)
	assert.Equal(t, portal.ExcludeForHumans, ex.Category)
	assert.Equal(t, "Newsletter for founders", ex.Reason)

	assert.True(t, ds.HasPortal("moltbook.com"))
	assert.True(t, ds.HasPortal("shellgone.io"))
}

func TestTargets(t *testing.T) {
	ds := dataset.New()
	ds.AddPortal(portal.Portal{URL: "https://moltzilla.com"})
	ds.AddPortal(portal.Portal{URL: "https://moltbook.com", Trust: portal.TrustHigh})
	ds.AddPortal(portal.Portal{URL: "https://clawdeals.com", Trust: portal.TrustUntrusted})

	targets := Targets(ds)
	require.Len(t, targets, 2)
	assert.Equal(t, "moltzilla.com", targets[0].Domain)
	assert.Equal(t, "clawdeals.com", targets[1].Domain)
}
