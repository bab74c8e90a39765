package extract

import (
	"bytes"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"

	"github.com/lysyi3m/moltdir/app/portal"
)

const (
	MaxTitleRunes       = 200
	MaxDescriptionRunes = 500
	MaxExcerptRunes     = 2000
)

// Extractor turns a fetched page into a Signal. It never returns an error:
// anything it cannot read degrades to empty fields with ParseFailed set.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Run(body []byte, contentType, pageURL string) portal.Signal {
	var signal portal.Signal
	if len(body) == 0 {
		return signal
	}

	data, err := Decode(body, contentType)
	if err != nil {
		slog.Debug("Charset decoding failed", "url", pageURL, "error", err)
		signal.ParseFailed = true
		data = bytes.ToValidUTF8(body, []byte(" "))
	}

	if !looksLikeMarkup(data) {
		signal.ParseFailed = true
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		slog.Debug("HTML parsing failed", "url", pageURL, "error", err)
		signal.ParseFailed = true
		return signal
	}

	signal.Title = truncate(collapse(doc.Find("title").First().Text()), MaxTitleRunes)
	if signal.Title == "" {
		signal.Title = truncate(collapse(metaContent(doc, "og:title")), MaxTitleRunes)
	}

	description := metaContent(doc, "description")
	if description == "" {
		description = metaContent(doc, "og:description")
	}
	signal.Description = truncate(collapse(description), MaxDescriptionRunes)

	bodyText := visibleText(doc)
	signal.WordCount = len(strings.Fields(bodyText))
	signal.TextLength = utf8.RuneCountInString(bodyText)

	excerpt := readableText(data, pageURL)
	if excerpt == "" {
		excerpt = bodyText
	}
	signal.Excerpt = truncate(excerpt, MaxExcerptRunes)

	slog.Debug("Signal extracted",
		"url", pageURL,
		"title", signal.Title,
		"words", signal.WordCount,
		"parse_failed", signal.ParseFailed)

	return signal
}

// Decode converts a page to UTF-8 using the Content-Type header and any
// <meta charset> declaration.
func Decode(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func readableText(data []byte, pageURL string) string {
	var u *url.URL
	if pageURL != "" {
		u, _ = url.Parse(pageURL)
	}

	article, err := readability.FromReader(bytes.NewReader(data), u)
	if err != nil {
		return ""
	}
	return collapse(article.TextContent)
}

func visibleText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	body = body.Clone()
	body.Find("script, style, noscript, template, svg").Remove()
	return collapse(body.Text())
}

// metaContent matches both name= and property= attributes case-insensitively.
func metaContent(doc *goquery.Document, key string) string {
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if name == "" {
			name, _ = s.Attr("property")
		}
		if strings.EqualFold(strings.TrimSpace(name), key) {
			content, _ = s.Attr("content")
			return false
		}
		return true
	})
	return content
}

func looksLikeMarkup(data []byte) bool {
	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	return bytes.IndexByte(head, '<') >= 0 && bytes.IndexByte(head, '>') >= 0
}

func collapse(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}
