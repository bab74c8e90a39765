package policy

// Document mirrors the policy YAML file.
type Document struct {
	Keywords            []KeywordGroup       `yaml:"keywords"`
	CoreDomain          CoreDomain           `yaml:"core_domain"`
	Thresholds          Thresholds           `yaml:"thresholds"`
	Penalties           Penalties            `yaml:"penalties"`
	Disqualifiers       []Disqualifier       `yaml:"disqualifiers"`
	HumansAudience      []string             `yaml:"humans_audience"`
	RedFlags            []string             `yaml:"red_flags"`
	ParkedIndicators    []string             `yaml:"parked_indicators"`
	KnownFalsePositives []KnownFalsePositive `yaml:"known_false_positives"`
	SkipDomains         []string             `yaml:"skip_domains"`
	Discovery           Discovery            `yaml:"discovery"`
	Dedup               Dedup                `yaml:"dedup"`
	Categories          Categories           `yaml:"categories"`
	InclusionCriteria   string               `yaml:"inclusion_criteria"`
}

// KeywordGroup is one {patterns, category, weight} record of the relevance table.
type KeywordGroup struct {
	Category string   `yaml:"category"`
	Weight   int      `yaml:"weight"`
	Patterns []string `yaml:"patterns"`
}

type CoreDomain struct {
	Weight   int      `yaml:"weight"`
	Patterns []string `yaml:"patterns"`
}

type Thresholds struct {
	Medium           int `yaml:"medium"`
	Accept           int `yaml:"accept"`
	Featured         int `yaml:"featured"`
	MinWords         int `yaml:"min_words"`
	MinTextChars     int `yaml:"min_text_chars"`
	ShortDescription int `yaml:"short_description"`
}

type Penalty struct {
	Core  int `yaml:"core"`
	Other int `yaml:"other"`
}

type Penalties struct {
	DescriptionIsDomain Penalty `yaml:"description_is_domain"`
	ShortDescription    Penalty `yaml:"short_description"`
}

type Disqualifier struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Patterns []string `yaml:"patterns"`
}

type KnownFalsePositive struct {
	Domain   string `yaml:"domain"`
	Category string `yaml:"category"`
	Reason   string `yaml:"reason"`
}

type Discovery struct {
	Keywords     []string `yaml:"keywords"`
	LinksPerPage int      `yaml:"links_per_page"`
	CTKeywords   []string `yaml:"ct_keywords"`
	CTLimit      int      `yaml:"ct_limit"`
	Seeds        []string `yaml:"seeds"`
	Bases        []string `yaml:"bases"`
	Suffixes     []string `yaml:"suffixes"`
	TLDs         []string `yaml:"tlds"`
}

type Dedup struct {
	TLDPriority        map[string]int `yaml:"tld_priority"`
	DefaultTLDPriority int            `yaml:"default_tld_priority"`
	KnownDifferent     [][]string     `yaml:"known_different"`
}

type CategoryRule struct {
	Category string   `yaml:"category"`
	Tag      string   `yaml:"tag"`
	Icon     string   `yaml:"icon"`
	Patterns []string `yaml:"patterns"`
}

type Categories struct {
	Default     string         `yaml:"default"`
	DefaultIcon string         `yaml:"default_icon"`
	DefaultTag  string         `yaml:"default_tag"`
	Rules       []CategoryRule `yaml:"rules"`
}
