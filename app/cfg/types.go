package cfg

import "time"

const (
	CommandRun     = "run"
	CommandSync    = "sync"
	CommandDedup   = "dedup"
	CommandCleanup = "cleanup"
	CommandAudit   = "audit"
	CommandVerify  = "verify"
	CommandStats   = "stats"
	CommandServe   = "serve"
	CommandWatch   = "watch"
)

const (
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
)

type Cfg struct {
	Command string

	// Dataset files
	PortalsFile    string
	ExclusionsFile string
	PublicFile     string
	PolicyFile     string
	HistoryDB      string

	// Crawling
	Workers           int
	FetchTimeout      time.Duration
	TaskTimeout       time.Duration
	RequestsPerSecond float64
	UserAgent         string
	CTEndpoint        string
	LockWait          time.Duration
	RecheckWindow     time.Duration

	MetricsFile string
	Timezone    string
	Debug       bool
	Version     string

	Run     RunCfg
	Dedup   DedupCfg
	Cleanup CleanupCfg
	Audit   AuditCfg
	Verify  VerifyCfg
	Serve   ServeCfg
	Watch   WatchCfg
}

type RunCfg struct {
	DryRun bool
	Leads  bool
	Seeds  bool
	CT     bool
	DNS    bool
}

type DedupCfg struct {
	Apply bool
}

type CleanupCfg struct {
	Apply  bool
	Window time.Duration
}

type AuditCfg struct {
	CSVFile string
}

type VerifyCfg struct {
	URL          string
	Apply        bool
	Limit        int
	Backend      string
	Model        string
	Endpoint     string
	AnthropicKey string
	OpenAIKey    string
}

type ServeCfg struct {
	Port         string
	APIAccessKey string
}

type WatchCfg struct {
	Schedule string
	RunCfg
}
