package policy

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/moltdir/app/portal"
)

//go:embed default_policy.yml
var defaultPolicy []byte

// Policy is the validated, compiled form of a policy Document.
// It is read-only after Parse and safe for concurrent use.
type Policy struct {
	Document

	keywords       []*Group
	coreDomain     *Group
	disqualifiers  []*Group
	humans         *Group
	redFlags       *Group
	parked         *Group
	discovery      *Group
	categoryRules  []*Group
	knownFalse     map[string]KnownFalsePositive
	skip           []string
	knownDifferent map[[2]string]bool
}

// Default returns the built-in policy table.
func Default() (*Policy, error) {
	return Parse(defaultPolicy)
}

// Load reads a policy file; an empty path selects the built-in table.
func Load(path string) (*Policy, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid policy %s: %w", path, err)
	}

	slog.Debug("Policy loaded", "path", path, "keyword_groups", len(p.keywords), "disqualifiers", len(p.disqualifiers))
	return p, nil
}

func Parse(data []byte) (*Policy, error) {
	var doc Document

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	setDefaults(&doc)

	if err := validate(&doc); err != nil {
		return nil, err
	}

	return compile(doc), nil
}

func setDefaults(doc *Document) {
	if doc.Discovery.LinksPerPage == 0 {
		doc.Discovery.LinksPerPage = 20
	}
	if doc.Discovery.CTLimit == 0 {
		doc.Discovery.CTLimit = 200
	}
	if doc.Dedup.DefaultTLDPriority == 0 {
		doc.Dedup.DefaultTLDPriority = 20
	}
	if doc.Categories.Default == "" {
		doc.Categories.Default = string(portal.CategoryPlatform)
	}
	if doc.Categories.DefaultIcon == "" {
		doc.Categories.DefaultIcon = "🦞"
	}
	if doc.Categories.DefaultTag == "" {
		doc.Categories.DefaultTag = "Platform"
	}
}

func validate(doc *Document) error {
	if len(doc.Keywords) == 0 {
		return fmt.Errorf("at least one keyword group is required")
	}

	seen := make(map[string]bool, len(doc.Keywords))
	for i, kw := range doc.Keywords {
		if kw.Category == "" {
			return fmt.Errorf("keyword group at index %d has no category", i)
		}
		if seen[kw.Category] {
			return fmt.Errorf("duplicate keyword category %q", kw.Category)
		}
		seen[kw.Category] = true
		if kw.Weight <= 0 || kw.Weight > 100 {
			return fmt.Errorf("keyword category %q weight must be within 1..100, got %d", kw.Category, kw.Weight)
		}
		if len(kw.Patterns) == 0 {
			return fmt.Errorf("keyword category %q has no patterns", kw.Category)
		}
	}

	if doc.CoreDomain.Weight < 0 || doc.CoreDomain.Weight > 100 {
		return fmt.Errorf("core domain weight must be within 0..100, got %d", doc.CoreDomain.Weight)
	}
	if len(doc.CoreDomain.Patterns) == 0 {
		return fmt.Errorf("core domain patterns are required")
	}

	percentages := map[string]int{
		"medium threshold":   doc.Thresholds.Medium,
		"accept threshold":   doc.Thresholds.Accept,
		"featured threshold": doc.Thresholds.Featured,
	}
	for name, v := range percentages {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be within 0..100, got %d", name, v)
		}
	}

	nonNegative := map[string]int{
		"min words":         doc.Thresholds.MinWords,
		"min text chars":    doc.Thresholds.MinTextChars,
		"short description": doc.Thresholds.ShortDescription,
		"links per page":    doc.Discovery.LinksPerPage,
		"ct limit":          doc.Discovery.CTLimit,
	}
	for name, v := range nonNegative {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}
	if doc.Penalties.DescriptionIsDomain.Core < 0 || doc.Penalties.DescriptionIsDomain.Other < 0 ||
		doc.Penalties.ShortDescription.Core < 0 || doc.Penalties.ShortDescription.Other < 0 {
		return fmt.Errorf("penalties must be non-negative")
	}

	for i, d := range doc.Disqualifiers {
		if d.Name == "" {
			return fmt.Errorf("disqualifier at index %d has no name", i)
		}
		if !portal.ExclusionCategory(d.Category).Valid() {
			return fmt.Errorf("disqualifier %q has invalid category %q", d.Name, d.Category)
		}
		if len(d.Patterns) == 0 {
			return fmt.Errorf("disqualifier %q has no patterns", d.Name)
		}
	}

	for i, fp := range doc.KnownFalsePositives {
		domain, err := portal.CanonicalDomain(fp.Domain)
		if err != nil {
			return fmt.Errorf("known false positive at index %d: %w", i, err)
		}
		if !portal.ExclusionCategory(fp.Category).Valid() {
			return fmt.Errorf("known false positive %s has invalid category %q", domain, fp.Category)
		}
	}

	if !portal.Category(doc.Categories.Default).Valid() {
		return fmt.Errorf("invalid default category %q", doc.Categories.Default)
	}
	for i, rule := range doc.Categories.Rules {
		if !portal.Category(rule.Category).Valid() {
			return fmt.Errorf("category rule at index %d has invalid category %q", i, rule.Category)
		}
		if len(rule.Patterns) == 0 {
			return fmt.Errorf("category rule %q has no patterns", rule.Category)
		}
	}

	for i, pair := range doc.Dedup.KnownDifferent {
		if len(pair) != 2 {
			return fmt.Errorf("known different entry at index %d must list exactly two domains", i)
		}
	}

	return nil
}

func compile(doc Document) *Policy {
	p := &Policy{
		Document:       doc,
		knownFalse:     make(map[string]KnownFalsePositive, len(doc.KnownFalsePositives)),
		knownDifferent: make(map[[2]string]bool, len(doc.Dedup.KnownDifferent)),
	}

	for _, kw := range doc.Keywords {
		p.keywords = append(p.keywords, newGroup(kw.Category, kw.Category, kw.Weight, kw.Patterns))
	}
	p.coreDomain = newGroup("core_domain", "core_domain", doc.CoreDomain.Weight, doc.CoreDomain.Patterns)

	for _, d := range doc.Disqualifiers {
		p.disqualifiers = append(p.disqualifiers, newGroup(d.Name, d.Category, 0, d.Patterns))
	}
	p.humans = newGroup("humans_audience", string(portal.ExcludeForHumans), 0, doc.HumansAudience)
	p.redFlags = newGroup("red_flags", string(portal.TrustUntrusted), 0, doc.RedFlags)
	p.parked = newGroup("parked_indicators", string(portal.ExcludeParked), 0, doc.ParkedIndicators)
	p.discovery = newGroup("discovery", "", 0, doc.Discovery.Keywords)

	for _, rule := range doc.Categories.Rules {
		p.categoryRules = append(p.categoryRules, newGroup(rule.Tag, rule.Category, 0, rule.Patterns))
	}

	for _, fp := range doc.KnownFalsePositives {
		domain, _ := portal.CanonicalDomain(fp.Domain)
		fp.Domain = domain
		p.knownFalse[domain] = fp
	}

	for _, d := range doc.SkipDomains {
		if domain, err := portal.CanonicalDomain(d); err == nil {
			p.skip = append(p.skip, domain)
		}
	}

	for _, pair := range doc.Dedup.KnownDifferent {
		a, errA := portal.CanonicalDomain(pair[0])
		b, errB := portal.CanonicalDomain(pair[1])
		if errA != nil || errB != nil {
			continue
		}
		p.knownDifferent[[2]string{a, b}] = true
		p.knownDifferent[[2]string{b, a}] = true
	}

	return p
}

func (p *Policy) KeywordGroups() []*Group  { return p.keywords }
func (p *Policy) CoreDomainGroup() *Group  { return p.coreDomain }
func (p *Policy) Disqualifiers() []*Group  { return p.disqualifiers }
func (p *Policy) HumansAudience() *Group   { return p.humans }
func (p *Policy) RedFlags() *Group         { return p.redFlags }
func (p *Policy) ParkedIndicators() *Group { return p.parked }

// KnownFalsePositive looks up a canonical domain in the built-in false positive list.
func (p *Policy) KnownFalsePositive(domain string) (KnownFalsePositive, bool) {
	fp, ok := p.knownFalse[domain]
	return fp, ok
}

// Skipped reports whether a domain is a mainstream site (or a subdomain of one).
func (p *Policy) Skipped(domain string) bool {
	for _, s := range p.skip {
		if domain == s || strings.HasSuffix(domain, "."+s) {
			return true
		}
	}
	return false
}

// Interesting reports whether a domain name carries a discovery keyword and is not skipped.
func (p *Policy) Interesting(domain string) bool {
	if p.Skipped(domain) {
		return false
	}
	return p.discovery.Contains(Normalize(domain))
}

func (p *Policy) KnownDifferent(a, b string) bool {
	return p.knownDifferent[[2]string{a, b}]
}

func (p *Policy) TLDPriority(suffix string) int {
	if v, ok := p.Dedup.TLDPriority[suffix]; ok {
		return v
	}
	return p.Dedup.DefaultTLDPriority
}

// Classify picks the display category, tag and icon for normalized text.
// The first matching rule wins; otherwise the defaults apply.
func (p *Policy) Classify(text string) (portal.Category, string, string) {
	for i, g := range p.categoryRules {
		if g.Contains(text) {
			rule := p.Categories.Rules[i]
			icon := rule.Icon
			if icon == "" {
				icon = p.Categories.DefaultIcon
			}
			return portal.Category(rule.Category), rule.Tag, icon
		}
	}
	return portal.Category(p.Categories.Default), p.Categories.DefaultTag, p.Categories.DefaultIcon
}

// EnumerationDomains expands the base × suffix × TLD grid.
func (p *Policy) EnumerationDomains() []string {
	d := p.Discovery
	out := make([]string, 0, len(d.Bases)*len(d.Suffixes)*len(d.TLDs))
	for _, base := range d.Bases {
		for _, suffix := range d.Suffixes {
			for _, tld := range d.TLDs {
				out = append(out, base+suffix+"."+tld)
			}
		}
	}
	return out
}
