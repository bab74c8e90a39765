package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawSources struct {
	DryRun  bool `long:"dry-run" description:"Evaluate candidates without writing the dataset"`
	NoLeads bool `long:"no-leads" description:"Skip scraping lead sources"`
	NoSeeds bool `long:"no-seeds" description:"Skip crawling seed pages"`
	NoCT    bool `long:"no-ct" description:"Skip Certificate Transparency search"`
	NoDNS   bool `long:"no-dns" description:"Skip the DNS enumeration grid"`
}

type rawCfg struct {
	// Dataset files
	PortalsFile    string `long:"portals" env:"MOLTDIR_PORTALS" default:"data/portals.json" description:"Portal dataset file"`
	ExclusionsFile string `long:"exclusions" env:"MOLTDIR_EXCLUSIONS" default:"data/excluded_sites.json" description:"Exclusion list file"`
	PublicFile     string `long:"public" env:"MOLTDIR_PUBLIC" description:"Public view written after each save (trust medium and above)"`
	PolicyFile     string `long:"policy" env:"MOLTDIR_POLICY" description:"Policy table YAML (built-in default when empty)"`
	HistoryDB      string `long:"history-db" env:"MOLTDIR_HISTORY_DB" default:"data/history.db" description:"Crawl history database (empty disables history)"`

	// Crawling
	Workers           int           `long:"workers" env:"WORKER_COUNT" default:"8" description:"Concurrent fetch workers"`
	FetchTimeout      time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"10s" description:"Timeout for a single HTTP request"`
	TaskTimeout       time.Duration `long:"task-timeout" env:"TASK_TIMEOUT" default:"45s" description:"Timeout for one candidate (fetch plus extraction)"`
	RequestsPerSecond float64       `long:"rate" env:"REQUESTS_PER_SECOND" default:"5" description:"Request rate across all workers (0 disables limiting)"`
	UserAgent         string        `long:"user-agent" env:"USER_AGENT" default:"moltdir/1.0 (+https://github.com/lysyi3m/moltdir)" description:"User agent string for HTTP requests"`
	CTEndpoint        string        `long:"ct-endpoint" env:"CT_ENDPOINT" description:"Certificate Transparency search endpoint"`
	LockWait          time.Duration `long:"lock-wait" env:"LOCK_WAIT" default:"0s" description:"How long to wait for another writer to release the dataset"`
	RecheckWindow     time.Duration `long:"recheck-window" env:"RECHECK_WINDOW" default:"72h" description:"Skip DNS lookups for names seen within this window"`

	// Application metadata
	MetricsFile string `long:"metrics-file" env:"METRICS_FILE" description:"Write run metrics in node-exporter textfile format"`
	Timezone    string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for log timestamps (e.g., UTC, Europe/Berlin)"`
	Debug       bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Run struct {
		rawSources
	} `command:"run" description:"Discover, fetch, score and merge new candidates"`

	Sync struct {
		DryRun bool `long:"dry-run" description:"Re-score without writing the dataset"`
	} `command:"sync" description:"Re-score existing portals without fetching"`

	Dedup struct {
		Apply bool `long:"apply" description:"Write the merge instead of printing the plan"`
	} `command:"dedup" description:"Find duplicate portals and sibling TLDs"`

	Cleanup struct {
		Apply  bool          `long:"apply" description:"Remove instead of printing the plan"`
		Window time.Duration `long:"window" default:"168h" description:"How long an untrusted portal stays before removal"`
	} `command:"cleanup" description:"Remove untrusted portals and known false positives"`

	Audit struct {
		CSVFile string `long:"csv" description:"Also write the audit list as CSV"`
	} `command:"audit" description:"List portals that need a decision"`

	Verify struct {
		URL          string `long:"url" description:"Verify a single site instead of the low-trust batch"`
		Apply        bool   `long:"apply" description:"Apply verdicts to the dataset"`
		Limit        int    `long:"limit" default:"0" description:"Verify at most this many portals (0 for all)"`
		Backend      string `long:"backend" env:"VERIFIER_BACKEND" default:"anthropic" choice:"anthropic" choice:"openai" description:"Model backend"`
		Model        string `long:"model" env:"VERIFIER_MODEL" description:"Model name (backend default when empty)"`
		Endpoint     string `long:"endpoint" env:"VERIFIER_ENDPOINT" description:"Base URL of the model API"`
		AnthropicKey string `long:"anthropic-key" env:"ANTHROPIC_API_KEY" description:"Anthropic API key"`
		OpenAIKey    string `long:"openai-key" env:"OPENAI_API_KEY" description:"API key for the OpenAI-compatible endpoint"`
	} `command:"verify" description:"Classify sites with a language model"`

	Stats struct{} `command:"stats" description:"Print dataset and crawl history statistics"`

	Serve struct {
		Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
		APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	} `command:"serve" description:"Serve a read-only preview of the dataset"`

	Watch struct {
		Schedule string `long:"schedule" env:"WATCH_SCHEDULE" default:"0 */6 * * *" description:"Cron expression for discovery runs"`
		rawSources
	} `command:"watch" description:"Run discovery on a cron schedule"`
}

var globalCfg *Cfg

// Load reads .env files, then parses args (without the program name).
// It returns nil, nil when help was requested.
func Load(args []string) (*Cfg, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.Name = "moltdir"

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		PortalsFile:       raw.PortalsFile,
		ExclusionsFile:    raw.ExclusionsFile,
		PublicFile:        raw.PublicFile,
		PolicyFile:        raw.PolicyFile,
		HistoryDB:         raw.HistoryDB,
		Workers:           raw.Workers,
		FetchTimeout:      raw.FetchTimeout,
		TaskTimeout:       raw.TaskTimeout,
		RequestsPerSecond: raw.RequestsPerSecond,
		UserAgent:         raw.UserAgent,
		CTEndpoint:        raw.CTEndpoint,
		LockWait:          raw.LockWait,
		RecheckWindow:     raw.RecheckWindow,
		MetricsFile:       raw.MetricsFile,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}
	if parser.Active != nil {
		cfg.Command = parser.Active.Name
	}

	switch cfg.Command {
	case CommandRun:
		cfg.Run = raw.Run.rawSources.toRunCfg()
	case CommandSync:
		cfg.Run = RunCfg{DryRun: raw.Sync.DryRun}
	case CommandDedup:
		cfg.Dedup = DedupCfg{Apply: raw.Dedup.Apply}
	case CommandCleanup:
		cfg.Cleanup = CleanupCfg{Apply: raw.Cleanup.Apply, Window: raw.Cleanup.Window}
	case CommandAudit:
		cfg.Audit = AuditCfg{CSVFile: raw.Audit.CSVFile}
	case CommandVerify:
		cfg.Verify = VerifyCfg{
			URL:          raw.Verify.URL,
			Apply:        raw.Verify.Apply,
			Limit:        raw.Verify.Limit,
			Backend:      raw.Verify.Backend,
			Model:        raw.Verify.Model,
			Endpoint:     raw.Verify.Endpoint,
			AnthropicKey: raw.Verify.AnthropicKey,
			OpenAIKey:    raw.Verify.OpenAIKey,
		}
	case CommandServe:
		cfg.Serve = ServeCfg{Port: raw.Serve.Port, APIAccessKey: raw.Serve.APIAccessKey}
	case CommandWatch:
		cfg.Watch = WatchCfg{Schedule: raw.Watch.Schedule, RunCfg: raw.Watch.rawSources.toRunCfg()}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func (s rawSources) toRunCfg() RunCfg {
	return RunCfg{
		DryRun: s.DryRun,
		Leads:  !s.NoLeads,
		Seeds:  !s.NoSeeds,
		CT:     !s.NoCT,
		DNS:    !s.NoDNS,
	}
}

func validate(cfg *Cfg) error {
	if cfg.Command == "" {
		return fmt.Errorf("no command given")
	}
	if cfg.PortalsFile == "" || cfg.ExclusionsFile == "" {
		return fmt.Errorf("portals and exclusions files are required")
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("rate must not be negative, got %v", cfg.RequestsPerSecond)
	}
	if cfg.FetchTimeout <= 0 || cfg.TaskTimeout <= 0 {
		return fmt.Errorf("fetch and task timeouts must be positive")
	}
	if cfg.Command == CommandCleanup && cfg.Cleanup.Window < 0 {
		return fmt.Errorf("cleanup window must not be negative")
	}
	if cfg.Command == CommandVerify && cfg.Verify.Limit < 0 {
		return fmt.Errorf("verify limit must not be negative")
	}
	return nil
}

// loadEnvFiles loads .env.local then .env. Variables already set win.
func loadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	return nil
}
