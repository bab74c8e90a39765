package dataset

import (
	"fmt"
	"sort"

	"github.com/lysyi3m/moltdir/app/portal"
)

// Dataset is the in-memory form of the portal list and the exclusion list.
// A domain appears in at most one of the two.
type Dataset struct {
	Updated     string
	Portals     []portal.Portal
	LeadSources map[string]portal.LeadSource

	exclusions []portal.Exclusion
	exclIndex  map[string]int
	index      map[string]int

	portalsDigest    []byte
	exclusionsDigest []byte
}

func New() *Dataset {
	ds := &Dataset{LeadSources: make(map[string]portal.LeadSource)}
	ds.reindex()
	return ds
}

func (ds *Dataset) reindex() {
	ds.index = make(map[string]int, len(ds.Portals))
	for i, p := range ds.Portals {
		if d := p.Domain(); d != "" {
			if _, ok := ds.index[d]; !ok {
				ds.index[d] = i
			}
		}
	}
	ds.exclIndex = make(map[string]int, len(ds.exclusions))
	for i, ex := range ds.exclusions {
		ds.exclIndex[ex.Domain] = i
	}
}

// Portal returns the first portal with the given canonical domain. The pointer
// is valid until the next structural change.
func (ds *Dataset) Portal(domain string) (*portal.Portal, bool) {
	i, ok := ds.index[domain]
	if !ok {
		return nil, false
	}
	return &ds.Portals[i], true
}

func (ds *Dataset) HasPortal(domain string) bool {
	_, ok := ds.index[domain]
	return ok
}

func (ds *Dataset) AddPortal(p portal.Portal) {
	ds.Portals = append(ds.Portals, p)
	if d := p.Domain(); d != "" {
		if _, ok := ds.index[d]; !ok {
			ds.index[d] = len(ds.Portals) - 1
		}
	}
}

// NewID derives the id for a new portal on domain, adding a numeric suffix
// when another domain already uses it (a-b.com and a.b.com share "a-b-com").
func (ds *Dataset) NewID(domain string) string {
	taken := make(map[string]bool, len(ds.Portals))
	for _, p := range ds.Portals {
		taken[p.ID] = true
	}

	base := portal.PortalID(domain)
	id := base
	for n := 2; taken[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

// RemovePortals drops every portal whose domain is in domains and returns
// the removed records in their original order.
func (ds *Dataset) RemovePortals(domains ...string) []portal.Portal {
	drop := make(map[string]bool, len(domains))
	for _, d := range domains {
		drop[d] = true
	}

	var removed []portal.Portal
	kept := ds.Portals[:0:0]
	for _, p := range ds.Portals {
		if drop[p.Domain()] {
			removed = append(removed, p)
			continue
		}
		kept = append(kept, p)
	}
	ds.Portals = kept
	ds.reindex()
	return removed
}

// Domains lists the distinct canonical portal domains in file order.
func (ds *Dataset) Domains() []string {
	seen := make(map[string]bool, len(ds.Portals))
	out := make([]string, 0, len(ds.Portals))
	for _, p := range ds.Portals {
		d := p.Domain()
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func (ds *Dataset) Exclusion(domain string) (portal.Exclusion, bool) {
	i, ok := ds.exclIndex[domain]
	if !ok {
		return portal.Exclusion{}, false
	}
	return ds.exclusions[i], true
}

func (ds *Dataset) Excluded(domain string) bool {
	_, ok := ds.exclIndex[domain]
	return ok
}

// AddExclusion records ex unless the domain is already excluded.
func (ds *Dataset) AddExclusion(ex portal.Exclusion) bool {
	if _, ok := ds.exclIndex[ex.Domain]; ok {
		return false
	}
	ds.exclusions = append(ds.exclusions, ex)
	ds.exclIndex[ex.Domain] = len(ds.exclusions) - 1
	return true
}

func (ds *Dataset) Exclusions() []portal.Exclusion {
	return append([]portal.Exclusion(nil), ds.exclusions...)
}

// ExclusionsByCategory groups exclusions in insertion order within each category.
func (ds *Dataset) ExclusionsByCategory() map[portal.ExclusionCategory][]portal.Exclusion {
	out := make(map[portal.ExclusionCategory][]portal.Exclusion)
	for _, ex := range ds.exclusions {
		out[ex.Category] = append(out[ex.Category], ex)
	}
	return out
}

// Leads returns lead sources ordered by domain.
func (ds *Dataset) Leads() []portal.LeadSource {
	out := make([]portal.LeadSource, 0, len(ds.LeadSources))
	for domain, lead := range ds.LeadSources {
		lead.Domain = domain
		out = append(out, lead)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

func (ds *Dataset) PublicPortals() []portal.Portal {
	out := make([]portal.Portal, 0, len(ds.Portals))
	for _, p := range ds.Portals {
		if p.Public() {
			out = append(out, p)
		}
	}
	return out
}
