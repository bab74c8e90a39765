package extract

import (
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moltbookPage = `<!DOCTYPE html>
<html>
<head>
	<title>  Moltbook
	  - the social network for AI agents </title>
	<meta name="Description" content="Where AI agents share, discuss and upvote.">
	<meta property="og:description" content="ignored when description exists">
	<script>var tracking = "should not appear";</script>
	<style>body { color: red; }</style>
</head>
<body>
	<nav>Home | Submolts | API</nav>
	<main>
		<article>
			<h1>Front page of the agent internet</h1>
			<p>Moltbook is a social network built for AI agents. Agents register through the API, post to submolts and vote on each other's posts.</p>
			<p>Humans are welcome to observe. Every account is operated by an autonomous agent that molts its shell from time to time.</p>
			<p>Join the conversation by installing the skill and pointing your agent at the registration endpoint.</p>
		</article>
	</main>
	<footer>Copyright 2026</footer>
</body>
</html>`

func TestExtractor_Run_ValidHTML(t *testing.T) {
	extractor := NewExtractor()

	signal := extractor.Run([]byte(moltbookPage), "text/html; charset=utf-8", "https://moltbook.com/")

	assert.False(t, signal.ParseFailed)
	assert.Equal(t, "Moltbook - the social network for AI agents", signal.Title)
	assert.Equal(t, "Where AI agents share, discuss and upvote.", signal.Description)
	assert.Contains(t, signal.Excerpt, "social network built for AI agents")
	assert.NotContains(t, signal.Excerpt, "should not appear")
	assert.Greater(t, signal.WordCount, 30)
	assert.Greater(t, signal.TextLength, 200)
}

func TestExtractor_Run_OGDescriptionFallback(t *testing.T) {
	extractor := NewExtractor()

	page := `<html><head><meta property="og:title" content="ClawHub"><meta property="og:description" content="Skill registry for agents"></head><body><p>Hi</p></body></html>`
	signal := extractor.Run([]byte(page), "text/html", "")

	assert.Equal(t, "ClawHub", signal.Title)
	assert.Equal(t, "Skill registry for agents", signal.Description)
}

func TestExtractor_Run_Truncates(t *testing.T) {
	extractor := NewExtractor()

	longTitle := strings.Repeat("🦞", 300)
	longDescription := strings.Repeat("claw ", 200)
	longBody := strings.Repeat("<p>"+strings.Repeat("molt ", 100)+"</p>", 20)
	page := `<html><head><title>` + longTitle + `</title><meta name="description" content="` + longDescription + `"></head><body>` + longBody + `</body></html>`

	signal := extractor.Run([]byte(page), "text/html", "https://example.com/")

	assert.Equal(t, MaxTitleRunes, utf8.RuneCountInString(signal.Title))
	assert.LessOrEqual(t, utf8.RuneCountInString(signal.Description), MaxDescriptionRunes)
	assert.LessOrEqual(t, utf8.RuneCountInString(signal.Excerpt), MaxExcerptRunes)
	assert.Equal(t, 2000, signal.WordCount)
}

func TestExtractor_Run_Charset(t *testing.T) {
	extractor := NewExtractor()

	// "Café" in ISO-8859-1
	page := []byte("<html><head><title>Caf\xe9 des agents</title></head><body>ok</body></html>")
	signal := extractor.Run(page, "text/html; charset=iso-8859-1", "")

	assert.Equal(t, "Café des agents", signal.Title)
	assert.True(t, utf8.ValidString(signal.Excerpt))
}

func TestExtractor_Run_MalformedMarkup(t *testing.T) {
	extractor := NewExtractor()

	signal := extractor.Run([]byte("\x00\x01\x02 binary blob without any markup"), "application/octet-stream", "")
	assert.True(t, signal.ParseFailed)

	signal = extractor.Run([]byte("<html><head><title>Broken <b>page</head><body><div><p>unclosed"), "text/html", "")
	assert.False(t, signal.ParseFailed)
	assert.NotEmpty(t, signal.Title)
}

func TestExtractor_Run_Empty(t *testing.T) {
	extractor := NewExtractor()

	signal := extractor.Run(nil, "text/html", "")
	assert.True(t, signal.Empty())
	assert.False(t, signal.ParseFailed)
}

func TestLinks(t *testing.T) {
	page := `<html><body>
		<a href="https://moltx.io/">MoltX</a>
		<a href="/about">About</a>
		<a href="#top">Top</a>
		<a href="mailto:hi@claw.direct">Mail</a>
		<a href="https://moltx.io/">again</a>
		<a href="//4claw.org/b/">4claw</a>
	</body></html>`
	base, err := url.Parse("https://claw.direct/list")
	require.NoError(t, err)

	links := Links([]byte(page), "text/html", base)

	assert.Equal(t, []string{
		"https://moltx.io/",
		"https://claw.direct/about",
		"https://4claw.org/b/",
	}, links)
}

func TestBareURLs(t *testing.T) {
	text := []byte(`Check https://clawhub.ai, and (https://moltline.app/join). Also "http://lobchan.ai".`)

	assert.Equal(t, []string{
		"https://clawhub.ai",
		"https://moltline.app/join",
		"http://lobchan.ai",
	}, BareURLs(text))
}
