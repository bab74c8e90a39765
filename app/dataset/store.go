package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"

	"github.com/lysyi3m/moltdir/app/portal"
)

var ErrLocked = errors.New("dataset is locked by another process")

type portalsFile struct {
	Updated string          `json:"updated"`
	Portals []portal.Portal `json:"portals"`
}

type exclusionsFile struct {
	Updated     string                        `json:"updated"`
	Categories  map[string][]portal.Exclusion `json:"categories"`
	LeadSources map[string]portal.LeadSource  `json:"lead_sources,omitempty"`
}

// Store reads and writes the dataset files. Writes go through a temp file,
// fsync and rename, so readers only ever see a complete file.
type Store struct {
	PortalsPath    string
	ExclusionsPath string
	// PublicPath, when set, receives the trust >= medium view of the portals.
	PublicPath string
}

func NewStore(portalsPath, exclusionsPath, publicPath string) *Store {
	return &Store{
		PortalsPath:    portalsPath,
		ExclusionsPath: exclusionsPath,
		PublicPath:     publicPath,
	}
}

// Lock takes the exclusive write lock. With wait == 0 it fails immediately
// with ErrLocked when another process holds it.
func (s *Store) Lock(ctx context.Context, wait time.Duration) (func() error, error) {
	fl := flock.New(s.PortalsPath + ".lock")

	var (
		locked bool
		err    error
	)
	if wait <= 0 {
		locked, err = fl.TryLock()
	} else {
		lockCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		locked, err = fl.TryLockContext(lockCtx, 100*time.Millisecond)
		if errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire dataset lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	return fl.Unlock, nil
}

func (s *Store) Load() (*Dataset, error) {
	ds := New()

	var pf portalsFile
	found, err := readJSON(s.PortalsPath, &pf)
	if err != nil {
		return nil, err
	}
	if found {
		ds.Updated = pf.Updated
		ds.Portals = pf.Portals
	}

	var ef exclusionsFile
	if _, err := readJSON(s.ExclusionsPath, &ef); err != nil {
		return nil, err
	}
	for category, list := range ef.Categories {
		if !portal.ExclusionCategory(category).Valid() {
			slog.Warn("Unknown exclusion category", "category", category, "count", len(list))
		}
		for _, ex := range list {
			domain, err := portal.CanonicalDomain(ex.Domain)
			if err != nil {
				return nil, fmt.Errorf("%w: exclusion %q: %w", portal.ErrCorruptDataset, ex.Domain, err)
			}
			ex.Domain = domain
			ex.Category = portal.ExclusionCategory(category)
			ds.exclusions = append(ds.exclusions, ex)
		}
	}
	sortExclusions(ds.exclusions, ef.Categories)
	for domain, lead := range ef.LeadSources {
		lead.Domain = domain
		ds.LeadSources[domain] = lead
	}

	// Records repeating one domain are left for dedup; an id shared by two
	// different domains is corruption.
	ids := make(map[string]string, len(ds.Portals))
	for i, p := range ds.Portals {
		if p.Domain() == "" {
			return nil, fmt.Errorf("%w: portal %d has invalid url %q", portal.ErrCorruptDataset, i, p.URL)
		}
		if p.Trust != "" && !p.Trust.Valid() {
			return nil, fmt.Errorf("%w: portal %s has invalid trust %q", portal.ErrCorruptDataset, p.Domain(), p.Trust)
		}
		if p.ID == "" {
			continue
		}
		if other, ok := ids[p.ID]; ok && other != p.Domain() {
			return nil, fmt.Errorf("%w: id %q is used by %s and %s", portal.ErrCorruptDataset, p.ID, other, p.Domain())
		}
		ids[p.ID] = p.Domain()
	}

	ds.reindex()
	for _, ex := range ds.exclusions {
		if ds.HasPortal(ex.Domain) {
			return nil, fmt.Errorf("%w: %s is both a portal and an exclusion", portal.ErrCorruptDataset, ex.Domain)
		}
	}

	ds.portalsDigest, _ = marshalPortals(ds)
	ds.exclusionsDigest, _ = marshalExclusions(ds)

	slog.Debug("Dataset loaded",
		"portals", len(ds.Portals),
		"exclusions", len(ds.exclusions),
		"lead_sources", len(ds.LeadSources))

	return ds, nil
}

type SaveResult struct {
	Portals    bool
	Exclusions bool
	Public     bool
}

func (r SaveResult) Any() bool {
	return r.Portals || r.Exclusions || r.Public
}

// Save writes only the files whose content changed since Load, so a run that
// changes nothing leaves every file byte-identical.
func (s *Store) Save(ds *Dataset, now time.Time) (SaveResult, error) {
	var res SaveResult
	stamp := now.UTC().Format(time.RFC3339)

	portalsBody, err := marshalPortals(ds)
	if err != nil {
		return res, fmt.Errorf("failed to encode portals: %w", err)
	}
	if !bytes.Equal(portalsBody, ds.portalsDigest) {
		ds.Updated = stamp
		if err := writeJSON(s.PortalsPath, portalsFile{Updated: stamp, Portals: nonNil(ds.Portals)}); err != nil {
			return res, err
		}
		ds.portalsDigest = portalsBody
		res.Portals = true
	}

	exclusionsBody, err := marshalExclusions(ds)
	if err != nil {
		return res, fmt.Errorf("failed to encode exclusions: %w", err)
	}
	if !bytes.Equal(exclusionsBody, ds.exclusionsDigest) {
		if err := writeJSON(s.ExclusionsPath, exclusionsDoc(ds, stamp)); err != nil {
			return res, err
		}
		ds.exclusionsDigest = exclusionsBody
		res.Exclusions = true
	}

	if s.PublicPath != "" {
		_, statErr := os.Stat(s.PublicPath)
		if res.Portals || errors.Is(statErr, os.ErrNotExist) {
			updated := ds.Updated
			if updated == "" {
				updated = stamp
			}
			if err := writeJSON(s.PublicPath, portalsFile{Updated: updated, Portals: ds.PublicPortals()}); err != nil {
				return res, err
			}
			res.Public = true
		}
	}

	if res.Any() {
		slog.Info("Dataset saved",
			"portals", len(ds.Portals),
			"exclusions", len(ds.exclusions),
			"portals_written", res.Portals,
			"exclusions_written", res.Exclusions,
			"public_written", res.Public)
	}

	return res, nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %w", portal.ErrCorruptDataset, path, err)
	}
	return true, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(path string, v any) error {
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func marshalPortals(ds *Dataset) ([]byte, error) {
	return encode(nonNil(ds.Portals))
}

func marshalExclusions(ds *Dataset) ([]byte, error) {
	doc := exclusionsDoc(ds, "")
	return encode(doc)
}

func exclusionsDoc(ds *Dataset, stamp string) exclusionsFile {
	categories := make(map[string][]portal.Exclusion)
	for category, list := range ds.ExclusionsByCategory() {
		categories[string(category)] = list
	}
	var leads map[string]portal.LeadSource
	if len(ds.LeadSources) > 0 {
		leads = ds.LeadSources
	}
	return exclusionsFile{Updated: stamp, Categories: categories, LeadSources: leads}
}

// sortExclusions restores file order: categories alphabetically, entries as listed.
func sortExclusions(list []portal.Exclusion, categories map[string][]portal.Exclusion) {
	position := make(map[string]int, len(list))
	for _, entries := range categories {
		for i, ex := range entries {
			if d, err := portal.CanonicalDomain(ex.Domain); err == nil {
				position[d] = i
			}
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Category != list[j].Category {
			return list[i].Category < list[j].Category
		}
		return position[list[i].Domain] < position[list[j].Domain]
	})
}

func nonNil(portals []portal.Portal) []portal.Portal {
	if portals == nil {
		return []portal.Portal{}
	}
	return portals
}
