package crawler

import (
	"sort"
	"strings"

	"github.com/lysyi3m/moltdir/app/portal"
)

const (
	SourceSeed    = "seed"
	SourceLink    = "link"
	SourceCT      = "ct"
	SourceDNS     = "dns"
	SourceDataset = "dataset"
	SourceManual  = "manual"
	leadPrefix    = "lead:"
)

func LeadSource(name string) string {
	return leadPrefix + name
}

// SourceKind groups every "lead:*" source under "lead".
func SourceKind(source string) string {
	if strings.HasPrefix(source, leadPrefix) {
		return "lead"
	}
	return source
}

// sourceRank orders discovery sources; a lower rank wins when a domain is
// found more than once.
func sourceRank(source string) int {
	if strings.HasPrefix(source, leadPrefix) {
		return 1
	}
	switch source {
	case SourceManual:
		return 0
	case SourceSeed:
		return 2
	case SourceLink:
		return 3
	case SourceCT:
		return 4
	case SourceDNS:
		return 5
	case SourceDataset:
		return 6
	}
	return 7
}

// CandidateSet deduplicates discovered domains by canonical form.
type CandidateSet struct {
	byDomain map[string]*portal.Candidate
	reject   func(domain string) bool
}

// NewCandidateSet builds an empty set; reject, if non-nil, drops domains
// before they become candidates.
func NewCandidateSet(reject func(domain string) bool) *CandidateSet {
	return &CandidateSet{
		byDomain: make(map[string]*portal.Candidate),
		reject:   reject,
	}
}

// Add registers raw (a URL or host) under source. It returns the candidate,
// or nil when raw is not a usable domain or is rejected.
func (s *CandidateSet) Add(raw, source string) *portal.Candidate {
	domain, err := portal.CanonicalDomain(raw)
	if err != nil {
		return nil
	}
	if s.reject != nil && s.reject(domain) {
		return nil
	}

	if c, ok := s.byDomain[domain]; ok {
		if sourceRank(source) < sourceRank(c.Source) {
			c.Source = source
		}
		return c
	}

	c := &portal.Candidate{
		Domain: domain,
		Source: source,
		URL:    portal.CanonicalURL(domain),
	}
	s.byDomain[domain] = c
	return c
}

// Merge adds the candidates of other, keeping fetched content when present.
func (s *CandidateSet) Merge(other *CandidateSet) {
	for _, oc := range other.List() {
		c := s.Add(oc.Domain, oc.Source)
		if c == nil {
			continue
		}
		if c.FetchStatus == "" && oc.FetchStatus != "" {
			source := c.Source
			*c = *oc
			c.Source = source
		}
	}
}

func (s *CandidateSet) Get(domain string) (*portal.Candidate, bool) {
	c, ok := s.byDomain[domain]
	return c, ok
}

func (s *CandidateSet) Len() int {
	return len(s.byDomain)
}

// List returns candidates sorted by source priority, then domain.
func (s *CandidateSet) List() []*portal.Candidate {
	out := make([]*portal.Candidate, 0, len(s.byDomain))
	for _, c := range s.byDomain {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := sourceRank(out[i].Source), sourceRank(out[j].Source)
		if ri != rj {
			return ri < rj
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}

func (s *CandidateSet) CountBySource() map[string]int {
	counts := make(map[string]int)
	for _, c := range s.byDomain {
		counts[SourceKind(c.Source)]++
	}
	return counts
}
