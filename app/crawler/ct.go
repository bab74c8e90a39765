package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/lysyi3m/moltdir/app/portal"
)

const DefaultCTEndpoint = "https://crt.sh/"

type ctEntry struct {
	CommonName string `json:"common_name"`
	NameValue  string `json:"name_value"`
}

// CTClient searches Certificate Transparency logs through crt.sh.
type CTClient struct {
	fetcher  *Fetcher
	endpoint string
}

func NewCTClient(fetcher *Fetcher, endpoint string) *CTClient {
	if endpoint == "" {
		endpoint = DefaultCTEndpoint
	}
	return &CTClient{fetcher: fetcher, endpoint: endpoint}
}

// Query returns up to limit distinct canonical domains whose certificates mention keyword.
func (c *CTClient) Query(ctx context.Context, keyword string, limit int) ([]string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid CT endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", "%"+keyword+"%")
	q.Set("output", "json")
	u.RawQuery = q.Encode()

	resp, err := c.fetcher.Get(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query CT logs for %q: %w", keyword, err)
	}

	var entries []ctEntry
	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		return nil, fmt.Errorf("%w: CT response for %q: %w", portal.ErrParseFailure, keyword, err)
	}

	seen := make(map[string]bool)
	var domains []string
	for _, e := range entries {
		names := strings.Split(e.NameValue, "\n")
		names = append(names, e.CommonName)
		for _, name := range names {
			name = strings.TrimPrefix(strings.TrimSpace(name), "*.")
			if !strings.Contains(strings.ToLower(name), keyword) {
				continue
			}
			domain, err := portal.CanonicalDomain(name)
			if err != nil {
				continue
			}
			domain = portal.RegistrableDomain(domain)
			if seen[domain] {
				continue
			}
			seen[domain] = true
			domains = append(domains, domain)
			if limit > 0 && len(domains) >= limit {
				return domains, nil
			}
		}
	}
	return domains, nil
}
