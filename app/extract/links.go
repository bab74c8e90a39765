package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var bareURLPattern = regexp.MustCompile(`https?://[a-zA-Z0-9][-a-zA-Z0-9.]*\.[a-zA-Z]{2,}[^\s"'<>)\]]*`)

// Links returns the absolute http(s) targets of all anchors on a page,
// in document order without duplicates.
func Links(body []byte, contentType string, base *url.URL) []string {
	data, err := Decode(body, contentType)
	if err != nil {
		data = body
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if abs := resolve(base, href); abs != "" && !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})
	return links
}

// BareURLs finds http(s) URLs written as plain text, e.g. in markdown or JSON lead pages.
func BareURLs(body []byte) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, m := range bareURLPattern.FindAll(body, -1) {
		u := strings.TrimRight(string(m), ".,;:")
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}
