package scoring

import (
	"strings"

	"github.com/lysyi3m/moltdir/app/policy"
	"github.com/lysyi3m/moltdir/app/portal"
)

type Result struct {
	Relevance int
	Trust     portal.Trust
	// Categories lists the keyword categories that contributed, in table order.
	Categories []string
	Matches    []string
	RedFlags   []string
	CoreDomain bool
	HasContent bool
	// Ambiguous marks a core-domain name with no page content to back it.
	Ambiguous bool
}

// Scorer is a pure function of (domain, signal) and the policy table.
type Scorer struct {
	policy *policy.Policy
}

func NewScorer(p *policy.Policy) *Scorer {
	return &Scorer{policy: p}
}

func (s *Scorer) Run(domain string, signal portal.Signal) Result {
	domainText := policy.Normalize(domain)
	title := policy.Normalize(signal.Title)
	description := policy.Normalize(signal.Description)
	text := strings.Join([]string{domainText, title, description}, " ")

	var res Result
	for _, group := range s.policy.KeywordGroups() {
		matched := group.Match(text)
		if len(matched) == 0 {
			continue
		}
		res.Relevance += group.Weight
		res.Categories = append(res.Categories, group.Category)
		res.Matches = append(res.Matches, matched...)
	}

	core := s.policy.CoreDomainGroup()
	res.CoreDomain = core.Contains(domainText)
	if res.CoreDomain {
		res.Relevance += core.Weight
	}

	res.Relevance -= s.penalty(domainText, description, res.CoreDomain)
	res.Relevance = clamp(res.Relevance, 0, 100)

	res.HasContent = title != "" || description != ""
	res.RedFlags = s.policy.RedFlags().Match(text)
	res.Trust, res.Ambiguous = s.trust(res)

	return res
}

func (s *Scorer) penalty(domain, description string, coreDomain bool) int {
	pick := func(p policy.Penalty) int {
		if coreDomain {
			return p.Core
		}
		return p.Other
	}

	// A description that only repeats the domain takes the heavier penalty alone.
	switch {
	case description == domain || description == "discovered at "+domain:
		return pick(s.policy.Penalties.DescriptionIsDomain)
	case len([]rune(description)) < s.policy.Thresholds.ShortDescription:
		return pick(s.policy.Penalties.ShortDescription)
	}
	return 0
}

func (s *Scorer) trust(res Result) (portal.Trust, bool) {
	switch {
	case len(res.RedFlags) > 0:
		return portal.TrustUntrusted, false
	case res.CoreDomain && res.HasContent:
		return portal.TrustHigh, false
	case res.HasContent && res.Relevance >= s.policy.Thresholds.Medium:
		return portal.TrustMedium, false
	default:
		return portal.TrustLow, res.CoreDomain && !res.HasContent
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
