package extract

import (
	"bytes"
	"cmp"
	"fmt"

	"github.com/mmcdole/gofeed"
)

type FeedEntry struct {
	Title       string
	Link        string
	Description string
}

// FeedParser reads RSS, Atom and JSON feeds published by lead sources.
type FeedParser struct {
	gofeedParser *gofeed.Parser
}

func NewFeedParser() *FeedParser {
	return &FeedParser{
		gofeedParser: gofeed.NewParser(),
	}
}

// IsFeed sniffs the document type without a full parse.
func IsFeed(data []byte) bool {
	return gofeed.DetectFeedType(bytes.NewReader(data)) != gofeed.FeedTypeUnknown
}

func (p *FeedParser) Run(data []byte) ([]FeedEntry, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]FeedEntry, 0, len(feed.Items)+1)
	if feed.Link != "" {
		entries = append(entries, FeedEntry{Title: feed.Title, Link: feed.Link, Description: feed.Description})
	}
	for _, item := range feed.Items {
		link := item.Link
		if link == "" && len(item.Links) > 0 {
			link = item.Links[0]
		}
		entries = append(entries, FeedEntry{
			Title:       item.Title,
			Link:        cmp.Or(link, item.GUID),
			Description: cmp.Or(item.Description, item.Content),
		})
	}
	return entries, nil
}

// Links returns every link a feed points at: entry links plus URLs mentioned
// in entry descriptions.
func (p *FeedParser) Links(data []byte) ([]string, error) {
	entries, err := p.Run(data)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			links = append(links, u)
		}
	}
	for _, e := range entries {
		add(e.Link)
		for _, u := range BareURLs([]byte(e.Description)) {
			add(u)
		}
	}
	return links, nil
}
