package api

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"sort"
	"time"

	"github.com/lysyi3m/moltdir/app/portal"
)

const maxFeedItems = 50

// RSSGenerator renders the most recently added public portals as RSS 2.0.
type RSSGenerator struct{}

func NewRSSGenerator() *RSSGenerator {
	return &RSSGenerator{}
}

func (g *RSSGenerator) Run(portals []portal.Portal, updated time.Time, selfLink string) string {
	recent := make([]portal.Portal, 0, len(portals))
	for _, p := range portals {
		if p.AddedAt != nil {
			recent = append(recent, p)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].AddedAt.After(*recent[j].AddedAt)
	})
	if len(recent) > maxFeedItems {
		recent = recent[:maxFeedItems]
	}

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", "moltdir: new agent portals", 4)
	g.writeElement(&buf, "link", selfLink, 4)
	g.writeElement(&buf, "description", "Websites for AI agents, newest first", 4)
	if selfLink != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(selfLink)))
	}

	lastBuildDate := updated
	if len(recent) > 0 {
		lastBuildDate = cmp.Or(*recent[0].AddedAt, updated)
	}
	if !lastBuildDate.IsZero() {
		g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	}
	g.writeElement(&buf, "generator", "moltdir", 4)

	for _, p := range recent {
		g.writeItem(&buf, p)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String()
}

func (g *RSSGenerator) writeItem(buf *bytes.Buffer, p portal.Portal) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(p.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", p.Name, 6)
	g.writeElement(buf, "link", p.URL, 6)
	g.writeElement(buf, "description", cmp.Or(p.Description, "No description available"), 6)
	g.writeElement(buf, "pubDate", p.AddedAt.Format(time.RFC1123Z), 6)
	g.writeElement(buf, "category", string(p.Category), 6)
	g.writeElement(buf, "category", "trust:"+string(p.TrustLevel()), 6)

	buf.WriteString("    </item>\n")
}

func (g *RSSGenerator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
