package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/moltdir/app/extract"
	"github.com/lysyi3m/moltdir/app/policy"
	"github.com/lysyi3m/moltdir/app/portal"
	"github.com/lysyi3m/moltdir/app/tasks"
)

type Sources struct {
	Leads bool
	Seeds bool
	CT    bool
	DNS   bool
}

func AllSources() Sources {
	return Sources{Leads: true, Seeds: true, CT: true, DNS: true}
}

type DiscoverOptions struct {
	Leads []portal.LeadSource
	// Existing holds the canonical domains already in the dataset.
	Existing []string
	Excluded func(domain string) bool
	// Known reports names the DNS grid need not look up again this run.
	Known   func(domain string) bool
	Sources Sources
}

// Discoverer builds the candidate set for one run. Seed pages fetched while
// crawling are kept on their candidates so they are not requested twice.
type Discoverer struct {
	policy     *policy.Policy
	fetcher    *Fetcher
	resolver   *Resolver
	ct         *CTClient
	feedParser *extract.FeedParser
	pool       tasks.TaskRunnerInterface
}

func NewDiscoverer(p *policy.Policy, fetcher *Fetcher, resolver *Resolver, ct *CTClient, pool tasks.TaskRunnerInterface) *Discoverer {
	return &Discoverer{
		policy:     p,
		fetcher:    fetcher,
		resolver:   resolver,
		ct:         ct,
		feedParser: extract.NewFeedParser(),
		pool:       pool,
	}
}

func (d *Discoverer) Discover(ctx context.Context, opts DiscoverOptions) (*CandidateSet, error) {
	start := time.Now()
	reject := func(domain string) bool {
		return d.policy.Skipped(domain) || (opts.Excluded != nil && opts.Excluded(domain))
	}

	var leads, seeds, ct, dns *CandidateSet
	g, gctx := errgroup.WithContext(ctx)

	if opts.Sources.Leads {
		g.Go(func() error {
			leads = d.harvestLeads(gctx, opts.Leads, reject)
			return gctx.Err()
		})
	}
	if opts.Sources.Seeds {
		g.Go(func() error {
			seeds = d.crawlSeeds(gctx, reject)
			return gctx.Err()
		})
	}
	if opts.Sources.CT && d.ct != nil {
		g.Go(func() error {
			ct = d.queryCT(gctx, reject)
			return gctx.Err()
		})
	}
	if opts.Sources.DNS && d.resolver != nil {
		g.Go(func() error {
			var err error
			dns, err = d.enumerate(gctx, opts, reject)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := NewCandidateSet(reject)
	for _, set := range []*CandidateSet{leads, seeds, ct, dns} {
		if set != nil {
			all.Merge(set)
		}
	}
	for _, domain := range opts.Existing {
		all.Add(domain, SourceDataset)
	}

	slog.Info("Discovery completed",
		"candidates", all.Len(),
		"by_source", all.CountBySource(),
		"duration", time.Since(start))

	return all, nil
}

func (d *Discoverer) harvestLeads(ctx context.Context, leads []portal.LeadSource, reject func(string) bool) *CandidateSet {
	set := NewCandidateSet(reject)

	for _, lead := range leads {
		if ctx.Err() != nil {
			break
		}

		pageURL := lead.URL
		if pageURL == "" {
			pageURL = portal.CanonicalURL(lead.Domain)
		}

		resp, err := d.fetcher.Get(ctx, pageURL)
		if err != nil {
			slog.Warn("Failed to fetch lead source", "lead", lead.Domain, "error", err)
			continue
		}

		links := d.pageLinks(resp)
		added := 0
		for _, link := range links {
			domain, err := portal.CanonicalDomain(link)
			if err != nil {
				continue
			}
			domain = portal.RegistrableDomain(domain)
			if domain == lead.Domain {
				continue
			}
			if set.Add(domain, LeadSource(lead.Domain)) != nil {
				added++
			}
		}

		slog.Debug("Lead source harvested", "lead", lead.Domain, "links", len(links), "candidates", added)
	}

	return set
}

func (d *Discoverer) pageLinks(resp *Response) []string {
	if extract.IsFeed(resp.Body) {
		links, err := d.feedParser.Links(resp.Body)
		if err == nil {
			return links
		}
		slog.Debug("Lead feed could not be parsed, falling back to HTML", "url", resp.URL, "error", err)
	}

	base, _ := url.Parse(resp.FinalURL)
	links := extract.Links(resp.Body, resp.ContentType, base)
	return append(links, extract.BareURLs(resp.Body)...)
}

func (d *Discoverer) crawlSeeds(ctx context.Context, reject func(string) bool) *CandidateSet {
	set := NewCandidateSet(reject)
	limit := d.policy.Discovery.LinksPerPage

	for _, seed := range d.policy.Discovery.Seeds {
		if ctx.Err() != nil {
			break
		}

		c := set.Add(seed, SourceSeed)
		if c == nil || c.FetchStatus != "" {
			continue
		}
		c.URL = seed
		if err := d.fetcher.Fetch(ctx, c); err != nil || !c.Fetched() {
			continue
		}

		base, _ := url.Parse(c.FinalURL)
		found := 0
		for _, link := range extract.Links(c.Body, c.ContentType, base) {
			if found >= limit {
				break
			}
			domain, err := portal.CanonicalDomain(link)
			if err != nil {
				continue
			}
			domain = portal.RegistrableDomain(domain)
			if domain == c.Domain || !d.policy.Interesting(domain) {
				continue
			}
			if _, ok := set.Get(domain); ok {
				continue
			}
			if set.Add(domain, SourceLink) != nil {
				found++
			}
		}
	}

	return set
}

func (d *Discoverer) queryCT(ctx context.Context, reject func(string) bool) *CandidateSet {
	set := NewCandidateSet(reject)

	for _, keyword := range d.policy.Discovery.CTKeywords {
		if ctx.Err() != nil {
			break
		}

		domains, err := d.ct.Query(ctx, keyword, d.policy.Discovery.CTLimit)
		if err != nil {
			slog.Warn("Certificate Transparency query failed", "keyword", keyword, "error", err)
			continue
		}
		for _, domain := range domains {
			set.Add(domain, SourceCT)
		}
	}

	return set
}

func (d *Discoverer) enumerate(ctx context.Context, opts DiscoverOptions, reject func(string) bool) (*CandidateSet, error) {
	existing := make(map[string]bool, len(opts.Existing))
	for _, domain := range opts.Existing {
		existing[domain] = true
	}

	var lookups []tasks.TaskInterface
	var resolves []*ResolveTask
	for _, name := range d.policy.EnumerationDomains() {
		domain, err := portal.CanonicalDomain(name)
		if err != nil || existing[domain] || reject(domain) {
			continue
		}
		if opts.Known != nil && opts.Known(domain) {
			continue
		}
		task := NewResolveTask(domain, d.resolver)
		resolves = append(resolves, task)
		lookups = append(lookups, task)
	}

	stats, err := d.pool.Run(ctx, lookups)
	if err != nil {
		return nil, err
	}

	set := NewCandidateSet(reject)
	for _, task := range resolves {
		if task.Resolved {
			set.Add(task.Target, SourceDNS)
		}
	}

	slog.Debug("DNS enumeration completed",
		"lookups", len(lookups),
		"resolved", set.Len(),
		"failed", stats.Failed)

	return set, nil
}
