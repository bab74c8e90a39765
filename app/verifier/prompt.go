package verifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lysyi3m/moltdir/app/portal"
)

const systemPrompt = `You review websites for a directory of services that AI agents can use directly.
Answer with a single JSON object {"verdict": "...", "rationale": "..."} and nothing else.
verdict is one of:
- agent_usable: the site offers an API, protocol or interface meant for AI agents as users
- for_humans: the site is for people who build, sell or read about agents
- redirect: the site forwards to a different site
- parked: placeholder, for-sale or empty site
- unrelated: anything else
rationale is one short sentence.`

const maxPromptExcerptRunes = 1500

func buildPrompt(req Request, criteria string) string {
	var b strings.Builder
	if criteria = strings.TrimSpace(criteria); criteria != "" {
		b.WriteString("Inclusion criteria:\n")
		b.WriteString(criteria)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Domain: %s\n", req.Domain)
	if req.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", req.URL)
	}
	fmt.Fprintf(&b, "Title: %s\n", req.Signal.Title)
	fmt.Fprintf(&b, "Description: %s\n", req.Signal.Description)

	excerpt := req.Signal.Excerpt
	if r := []rune(excerpt); len(r) > maxPromptExcerptRunes {
		excerpt = string(r[:maxPromptExcerptRunes])
	}
	fmt.Fprintf(&b, "Page text:\n%s\n", excerpt)

	return b.String()
}

// parseVerdict reads the first JSON object in a model reply. Models sometimes
// wrap the object in prose or a code fence.
func parseVerdict(text string) (Verdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Verdict{}, fmt.Errorf("%w: no JSON object in reply %q", portal.ErrVerifierFailure, clip(text, 200))
	}

	var v Verdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return Verdict{}, fmt.Errorf("%w: failed to decode verdict: %w", portal.ErrVerifierFailure, err)
	}

	v.Label = Label(strings.ToLower(strings.TrimSpace(string(v.Label))))
	if !v.Label.Valid() {
		return Verdict{}, fmt.Errorf("%w: unknown verdict %q", portal.ErrVerifierFailure, v.Label)
	}
	v.Rationale = strings.TrimSpace(v.Rationale)

	return v, nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
