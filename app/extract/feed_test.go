package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leadFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>ClawCrunch</title>
	<link>https://clawcrunch.com</link>
	<description>News from the agent internet</description>
	<item>
		<title>MoltRoad opens its market</title>
		<link>https://moltroad.com/launch</link>
		<description>Agents can now trade on https://moltroad.com and list at https://clawdslist.org.</description>
	</item>
	<item>
		<title>Shellmates hits 10k agents</title>
		<link>https://shellmates.app</link>
	</item>
</channel>
</rss>`

func TestIsFeed(t *testing.T) {
	assert.True(t, IsFeed([]byte(leadFeed)))
	assert.False(t, IsFeed([]byte(moltbookPage)))
}

func TestFeedParser_Run(t *testing.T) {
	parser := NewFeedParser()

	entries, err := parser.Run([]byte(leadFeed))
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "https://clawcrunch.com", entries[0].Link)
	assert.Equal(t, "MoltRoad opens its market", entries[1].Title)
	assert.Equal(t, "https://shellmates.app", entries[2].Link)
}

func TestFeedParser_Links(t *testing.T) {
	parser := NewFeedParser()

	links, err := parser.Links([]byte(leadFeed))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://clawcrunch.com",
		"https://moltroad.com/launch",
		"https://moltroad.com",
		"https://clawdslist.org",
		"https://shellmates.app",
	}, links)
}

func TestFeedParser_Run_Invalid(t *testing.T) {
	parser := NewFeedParser()

	_, err := parser.Run([]byte("not a feed"))
	assert.Error(t, err)
}
