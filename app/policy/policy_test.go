package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/moltdir/app/portal"
)

func TestDefault_Loads(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	require.Len(t, p.KeywordGroups(), 3)
	assert.Equal(t, "core", p.KeywordGroups()[0].Category)
	assert.Equal(t, 30, p.KeywordGroups()[0].Weight)
	assert.NotEmpty(t, p.Disqualifiers())
	assert.NotEmpty(t, p.Discovery.Seeds)
	assert.Equal(t, 30, p.Thresholds.Medium)
	assert.NotEmpty(t, p.InclusionCriteria)
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30, p.CoreDomain.Weight)
}

func TestLoad_File(t *testing.T) {
	doc := `
keywords:
  - category: core
    weight: 40
    patterns: [Molt, molt, claw]
core_domain:
  weight: 10
  patterns: [molt]
`
	path := filepath.Join(t.TempDir(), "policy.yml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	p, err := Load(path)
	require.NoError(t, err)

	require.Len(t, p.KeywordGroups(), 1)
	assert.Equal(t, []string{"molt", "claw"}, p.KeywordGroups()[0].Patterns, "patterns are normalized and deduplicated")
	assert.Equal(t, 20, p.Discovery.LinksPerPage)
	assert.Equal(t, portal.CategoryPlatform, portal.Category(p.Categories.Default))
}

func TestParse_RejectsMalformedTables(t *testing.T) {
	base := "core_domain: {weight: 30, patterns: [molt]}\n"
	tests := map[string]string{
		"no keywords":       base,
		"zero weight":       "keywords: [{category: core, weight: 0, patterns: [molt]}]\n" + base,
		"weight over 100":   "keywords: [{category: core, weight: 101, patterns: [molt]}]\n" + base,
		"duplicate":         "keywords: [{category: core, weight: 10, patterns: [a]}, {category: core, weight: 10, patterns: [b]}]\n" + base,
		"empty patterns":    "keywords: [{category: core, weight: 10, patterns: []}]\n" + base,
		"unknown field":     "keywords: [{category: core, weight: 10, patterns: [a]}]\n" + base + "bogus: 1\n",
		"bad disqualifier":  "keywords: [{category: core, weight: 10, patterns: [a]}]\n" + base + "disqualifiers: [{name: x, category: seafood, patterns: [crab]}]\n",
		"bad false pos":     "keywords: [{category: core, weight: 10, patterns: [a]}]\n" + base + "known_false_positives: [{domain: crabs.com, category: nope}]\n",
		"bad category rule": "keywords: [{category: core, weight: 10, patterns: [a]}]\n" + base + "categories: {rules: [{category: finance, patterns: [bank]}]}\n",
		"bad pair":          "keywords: [{category: core, weight: 10, patterns: [a]}]\n" + base + "dedup: {known_different: [[a.com]]}\n",
		"threshold":         "keywords: [{category: core, weight: 10, patterns: [a]}]\n" + base + "thresholds: {medium: 130}\n",
		"not yaml":          "keywords: [",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestGroup_Match(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	core := p.KeywordGroups()[0]
	text := Normalize("MoltBook: the social network for   AI agents. Molt daily.")
	matched := core.Match(text)
	assert.Contains(t, matched, "molt")
	assert.Contains(t, matched, "moltbook")
	assert.Equal(t, len(matched), core.Count(text))

	var empty *Group
	assert.Nil(t, empty.Match("molt"))
	assert.False(t, core.Contains(""))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hello world", Normalize("  HELLO \n\t World "))
	assert.Equal(t, "molt", Normalize("ＭＯＬＴ"))
}

func TestPolicy_Skipped(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	assert.True(t, p.Skipped("github.com"))
	assert.True(t, p.Skipped("gist.github.com"))
	assert.False(t, p.Skipped("notgithub.com"))
	assert.False(t, p.Skipped("moltbook.com"))
}

func TestPolicy_Interesting(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	assert.True(t, p.Interesting("clawnews.io"))
	assert.True(t, p.Interesting("agentsy.live"))
	assert.False(t, p.Interesting("example.com"))
	assert.False(t, p.Interesting("github.com"))
}

func TestPolicy_KnownFalsePositive(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	fp, ok := p.KnownFalsePositive("crabs.com")
	require.True(t, ok)
	assert.Equal(t, string(portal.ExcludeWrongIndustry), fp.Category)

	_, ok = p.KnownFalsePositive("moltbook.com")
	assert.False(t, ok)
}

func TestPolicy_KnownDifferent(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	assert.True(t, p.KnownDifferent("moltbook.com", "moltbook.town"))
	assert.True(t, p.KnownDifferent("moltbook.town", "moltbook.com"))
	assert.False(t, p.KnownDifferent("clawhub.ai", "clawhub.com"))
}

func TestPolicy_TLDPriority(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 100, p.TLDPriority("com"))
	assert.Equal(t, 85, p.TLDPriority("ai"))
	assert.Equal(t, 20, p.TLDPriority("church"))
}

func TestPolicy_Classify(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	category, tag, icon := p.Classify(Normalize("ClawArena chess tournament for agents"))
	assert.Equal(t, portal.CategoryGaming, category)
	assert.Equal(t, "Gaming", tag)
	assert.Equal(t, "🎮", icon)

	category, tag, icon = p.Classify(Normalize("A registry of skills"))
	assert.Equal(t, portal.CategoryPlatform, category)
	assert.Equal(t, "Platform", tag)
	assert.Equal(t, "🦞", icon)
}

func TestPolicy_EnumerationDomains(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	domains := p.EnumerationDomains()
	d := p.Discovery
	assert.Len(t, domains, len(d.Bases)*len(d.Suffixes)*len(d.TLDs))
	assert.Contains(t, domains, "moltbook.com")
	assert.Contains(t, domains, "clawhub.ai")
	for _, domain := range domains {
		assert.True(t, strings.Contains(domain, "."), domain)
	}
}
