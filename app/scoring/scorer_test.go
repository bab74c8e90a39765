package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/moltdir/app/policy"
	"github.com/lysyi3m/moltdir/app/portal"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	p, err := policy.Default()
	require.NoError(t, err)
	return NewScorer(p)
}

func TestScorer_Run_CoreDomainWithContent(t *testing.T) {
	scorer := newTestScorer(t)

	res := scorer.Run("molthunt.app", portal.Signal{
		Title:       "MoltHunt: launch day for agent apps",
		Description: "Discover new apps built on the molt ecosystem every day",
	})

	assert.Equal(t, portal.TrustHigh, res.Trust)
	assert.GreaterOrEqual(t, res.Relevance, 50)
	assert.Equal(t, 80, res.Relevance)
	assert.True(t, res.CoreDomain)
	assert.Equal(t, []string{"core", "agent"}, res.Categories)
	assert.False(t, res.Ambiguous)
}

func TestScorer_Run_DescriptionIsDomain(t *testing.T) {
	scorer := newTestScorer(t)

	res := scorer.Run("clawhub.ai", portal.Signal{
		Title:       "ClawHub skills for your agent",
		Description: "clawhub.ai",
	})

	assert.Equal(t, 65, res.Relevance)
	assert.Equal(t, portal.TrustHigh, res.Trust)
}

func TestScorer_Run_Medium(t *testing.T) {
	scorer := newTestScorer(t)

	res := scorer.Run("agentsy.live", portal.Signal{
		Title:       "Agentsy - live streaming for AI agents",
		Description: "Autonomous agents stream and chat with each other",
	})

	assert.False(t, res.CoreDomain)
	assert.Equal(t, 40, res.Relevance)
	assert.Equal(t, portal.TrustMedium, res.Trust)
}

func TestScorer_Run_CoreDomainWithoutContent(t *testing.T) {
	scorer := newTestScorer(t)

	res := scorer.Run("moltzilla.xyz", portal.Signal{})

	assert.Equal(t, portal.TrustLow, res.Trust)
	assert.True(t, res.Ambiguous)
	assert.Equal(t, 55, res.Relevance)
}

func TestScorer_Run_RedFlag(t *testing.T) {
	scorer := newTestScorer(t)

	res := scorer.Run("moltlaunch.com", portal.Signal{
		Title:       "MoltLaunch",
		Description: "Coming soon: the launchpad for molt agents",
	})

	assert.Equal(t, portal.TrustUntrusted, res.Trust)
	assert.Equal(t, []string{"coming soon"}, res.RedFlags)
}

func TestScorer_Run_RedFlagInBodyIgnored(t *testing.T) {
	scorer := newTestScorer(t)

	res := scorer.Run("moltguard.io", portal.Signal{
		Title:       "MoltGuard",
		Description: "Security reports for molt agents",
		Excerpt:     "This week: a phishing kit aimed at agent wallets.",
	})

	assert.Empty(t, res.RedFlags)
	assert.NotEqual(t, portal.TrustUntrusted, res.Trust)
}

func TestScorer_Run_NeverVerified(t *testing.T) {
	scorer := newTestScorer(t)

	res := scorer.Run("openclaw.ai", portal.Signal{
		Title:       "OpenClaw - autonomous agents for everyone",
		Description: "OpenClaw is the open agent runtime behind the molt ecosystem, for agents and by agents.",
	})

	assert.NotEqual(t, portal.TrustVerified, res.Trust)
	assert.Equal(t, 100, res.Relevance)
}

func TestScorer_Run_KeywordStuffing(t *testing.T) {
	scorer := newTestScorer(t)

	once := scorer.Run("example.com", portal.Signal{
		Title:       "Molt",
		Description: "A page that mentions the word molt once",
	})
	stuffed := scorer.Run("example.com", portal.Signal{
		Title:       strings.Repeat("molt claw lobster ", 50),
		Description: strings.Repeat("molt molt molt ", 30),
	})

	assert.Equal(t, 30, once.Relevance)
	assert.Equal(t, once.Relevance, stuffed.Relevance)
}

func TestScorer_Run_Bounds(t *testing.T) {
	scorer := newTestScorer(t)

	signals := []portal.Signal{
		{},
		{Title: "x"},
		{Title: "molt claw agent for agents", Description: "agent economy of ai agents for ai and llm claude"},
		{Description: "plumbing.com"},
	}
	for _, domain := range []string{"plumbing.com", "moltclaw.ai", "agent-for-agents.io"} {
		for _, signal := range signals {
			res := scorer.Run(domain, signal)
			assert.GreaterOrEqual(t, res.Relevance, 0, domain)
			assert.LessOrEqual(t, res.Relevance, 100, domain)
		}
	}

	res := scorer.Run("plumbing.com", portal.Signal{Description: "plumbing.com"})
	assert.Equal(t, 0, res.Relevance)
	assert.Equal(t, portal.TrustLow, res.Trust)
}

func TestScorer_Run_Deterministic(t *testing.T) {
	scorer := newTestScorer(t)

	signal := portal.Signal{
		Title:       "Shellmates: dating for agents",
		Description: "Agents find compatible agents to molt with",
		Excerpt:     "A longer body of text about agent dating.",
	}
	first := scorer.Run("shellmates.app", signal)
	for range 10 {
		assert.Equal(t, first, scorer.Run("shellmates.app", signal))
	}
}
