package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/lysyi3m/moltdir/app/portal"
)

const auditDescriptionRunes = 100

type AuditEntry struct {
	Portal portal.Portal
	Action string
}

// Audit lists low and untrusted portals, most relevant first, each with the
// action a reviewer is expected to take.
func Audit(ds *Dataset) []AuditEntry {
	var entries []AuditEntry
	for _, p := range ds.Portals {
		switch p.TrustLevel() {
		case portal.TrustUntrusted:
			entries = append(entries, AuditEntry{Portal: p, Action: "remove"})
		case portal.TrustLow:
			entries = append(entries, AuditEntry{Portal: p, Action: "review"})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Portal.Relevance > entries[j].Portal.Relevance
	})
	return entries
}

func WriteAuditCSV(w io.Writer, entries []AuditEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"domain", "name", "trust", "relevance", "description", "action"}); err != nil {
		return fmt.Errorf("failed to write audit header: %w", err)
	}

	for _, e := range entries {
		p := e.Portal
		row := []string{
			p.Domain(),
			p.Name,
			string(p.TrustLevel()),
			strconv.Itoa(p.Relevance),
			truncate(p.Description, auditDescriptionRunes),
			e.Action,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write audit row for %s: %w", p.Domain(), err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
