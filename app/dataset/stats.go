package dataset

import "github.com/lysyi3m/moltdir/app/portal"

type Stats struct {
	Updated    string                           `json:"updated"`
	Portals    int                              `json:"portals"`
	Public     int                              `json:"public"`
	Featured   int                              `json:"featured"`
	ByTrust    map[portal.Trust]int             `json:"by_trust"`
	ByCategory map[portal.Category]int          `json:"by_category"`
	Exclusions int                              `json:"exclusions"`
	Excluded   map[portal.ExclusionCategory]int `json:"excluded"`
	Leads      int                              `json:"lead_sources"`
}

func (ds *Dataset) Stats() Stats {
	s := Stats{
		Updated:    ds.Updated,
		Portals:    len(ds.Portals),
		ByTrust:    make(map[portal.Trust]int),
		ByCategory: make(map[portal.Category]int),
		Exclusions: len(ds.exclusions),
		Excluded:   make(map[portal.ExclusionCategory]int),
		Leads:      len(ds.LeadSources),
	}

	for _, p := range ds.Portals {
		s.ByTrust[p.TrustLevel()]++
		s.ByCategory[p.Category]++
		if p.Public() {
			s.Public++
		}
		if p.Featured {
			s.Featured++
		}
	}
	for _, ex := range ds.exclusions {
		s.Excluded[ex.Category]++
	}

	return s
}
