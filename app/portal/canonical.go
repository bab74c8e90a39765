package portal

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// CanonicalDomain normalizes a URL or bare host into the dedup key:
// lowercase ASCII host, no scheme, port, path, trailing dot or leading "www.".
func CanonicalDomain(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty domain")
	}
	if strings.HasPrefix(strings.ToLower(s), "mailto:") {
		return "", fmt.Errorf("not a web address: %s", raw)
	}
	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	} else if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("failed to parse %q: %w", raw, err)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", host, err)
	}
	if !strings.Contains(ascii, ".") {
		return "", fmt.Errorf("host %q has no public suffix", ascii)
	}

	return ascii, nil
}

// PortalID derives the stable portal identifier from a canonical domain.
func PortalID(domain string) string {
	return strings.ReplaceAll(domain, ".", "-")
}

func CanonicalURL(domain string) string {
	return "https://" + domain
}

// SplitSuffix splits a canonical domain into its label part and public suffix,
// e.g. "moltbook.co.uk" -> ("moltbook", "co.uk").
func SplitSuffix(domain string) (label, suffix string) {
	suffix, _ = publicsuffix.PublicSuffix(domain)
	if suffix == "" || suffix == domain {
		return domain, ""
	}
	return strings.TrimSuffix(domain, "."+suffix), suffix
}

// RegistrableDomain reduces a canonical host to its eTLD+1, e.g.
// "api.moltbook.com" -> "moltbook.com". Hosts that are themselves a public
// suffix are returned unchanged.
func RegistrableDomain(domain string) string {
	r, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return domain
	}
	return r
}
