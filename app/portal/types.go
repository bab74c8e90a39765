package portal

import (
	"fmt"
	"strings"
	"time"
)

type Trust string

const (
	TrustUntrusted Trust = "untrusted"
	TrustLow       Trust = "low"
	TrustMedium    Trust = "medium"
	TrustHigh      Trust = "high"
	TrustVerified  Trust = "verified"
)

var trustOrder = []Trust{TrustUntrusted, TrustLow, TrustMedium, TrustHigh, TrustVerified}

// ParseTrust accepts the lowercase trust names; an empty string reads as low.
func ParseTrust(s string) (Trust, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TrustLow, nil
	}
	for _, t := range trustOrder {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown trust level %q", s)
}

// Rank orders trust levels. Unknown values rank with untrusted.
func (t Trust) Rank() int {
	if t == "" {
		return 1
	}
	for i, v := range trustOrder {
		if v == t {
			return i
		}
	}
	return 0
}

func (t Trust) AtLeast(other Trust) bool {
	return t.Rank() >= other.Rank()
}

func (t Trust) Valid() bool {
	_, err := ParseTrust(string(t))
	return err == nil
}

type Category string

const (
	CategorySocial   Category = "social"
	CategoryCreative Category = "creative"
	CategoryPlatform Category = "platform"
	CategoryGaming   Category = "gaming"
)

func (c Category) Valid() bool {
	switch c {
	case CategorySocial, CategoryCreative, CategoryPlatform, CategoryGaming:
		return true
	}
	return false
}

type ExclusionCategory string

const (
	ExcludeWrongIndustry ExclusionCategory = "wrong_industry"
	ExcludeRedirect      ExclusionCategory = "redirect"
	ExcludeParked        ExclusionCategory = "parked"
	ExcludeUnrelated     ExclusionCategory = "unrelated"
	ExcludeBotDirectory  ExclusionCategory = "bot_directory"
	ExcludeForHumans     ExclusionCategory = "for_humans"
	ExcludeDead          ExclusionCategory = "dead"
)

// ExclusionCategories lists every category in display order.
var ExclusionCategories = []ExclusionCategory{
	ExcludeWrongIndustry,
	ExcludeRedirect,
	ExcludeParked,
	ExcludeUnrelated,
	ExcludeBotDirectory,
	ExcludeForHumans,
	ExcludeDead,
}

func (c ExclusionCategory) Valid() bool {
	for _, v := range ExclusionCategories {
		if v == c {
			return true
		}
	}
	return false
}

type FetchStatus string

const (
	FetchSuccess   FetchStatus = "success"
	FetchTimeout   FetchStatus = "timeout"
	FetchError     FetchStatus = "error"
	FetchNoContent FetchStatus = "no_content"
	FetchSkipped   FetchStatus = "skipped"
)

// Signal is the text extracted from a fetched page.
type Signal struct {
	Title       string
	Description string
	Excerpt     string
	WordCount   int
	TextLength  int
	ParseFailed bool
}

func (s Signal) Empty() bool {
	return s.Title == "" && s.Description == "" && s.Excerpt == ""
}

// Candidate is a domain under evaluation during a single run.
type Candidate struct {
	Domain      string
	Source      string
	URL         string
	FinalURL    string
	StatusCode  int
	FetchStatus FetchStatus
	FetchError  string
	ContentType string
	Body        []byte
	Signal      Signal
}

// Fetched reports whether the candidate has page content to extract from.
func (c *Candidate) Fetched() bool {
	return c.FetchStatus == FetchSuccess && len(c.Body) > 0
}

type Portal struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Icon        string     `json:"icon"`
	Category    Category   `json:"category"`
	Tag         string     `json:"tag"`
	Description string     `json:"description"`
	Trust       Trust      `json:"trust"`
	Relevance   int        `json:"relevance"`
	Featured    bool       `json:"featured,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	AddedAt     *time.Time `json:"added_at,omitempty"`
	AuditedAt   *time.Time `json:"audited_at,omitempty"`
}

// Domain returns the canonical domain of the portal URL, or "" if it cannot be parsed.
func (p Portal) Domain() string {
	d, err := CanonicalDomain(p.URL)
	if err != nil {
		return ""
	}
	return d
}

// TrustLevel treats a missing trust as low.
func (p Portal) TrustLevel() Trust {
	if p.Trust == "" {
		return TrustLow
	}
	return p.Trust
}

// Public reports whether the portal is surfaced to public dataset consumers.
func (p Portal) Public() bool {
	return p.TrustLevel().AtLeast(TrustMedium)
}

type Exclusion struct {
	Domain   string            `json:"domain"`
	Category ExclusionCategory `json:"-"`
	Reason   string            `json:"reason"`
}

type LeadSource struct {
	Domain      string `json:"-"`
	Description string `json:"description"`
	URL         string `json:"url"`
}
