package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/moltdir/app/database"
	"github.com/lysyi3m/moltdir/app/dataset"
	"github.com/lysyi3m/moltdir/app/portal"
)

const recentRunsLimit = 5

// NewHandler serves read-only views of the dataset. siteRepo and runRepo may
// be nil when no crawl history is configured.
func NewHandler(store DatasetLoaderInterface, siteRepo database.SiteRepositoryInterface,
	runRepo database.RunRepositoryInterface) *Handler {
	return &Handler{
		store:     store,
		siteRepo:  siteRepo,
		runRepo:   runRepo,
		generator: NewRSSGenerator(),
	}
}

func (h *Handler) load(c *gin.Context) (*dataset.Dataset, bool) {
	ds, err := h.store.Load()
	if err != nil {
		slog.Error("Dataset load error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dataset"})
		return nil, false
	}
	return ds, true
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	ds, err := h.store.Load()
	if err != nil {
		slog.Error("Dataset load error", "operation", "health", "error", err)
		health["status"] = "degraded"
		health["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	health["portals"] = len(ds.Portals)
	health["updated"] = ds.Updated

	if h.siteRepo != nil {
		if count, err := h.siteRepo.CountSites(c.Request.Context()); err == nil {
			health["known_sites"] = count
		}
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ds, ok := h.load(c)
	if !ok {
		return
	}

	stats := map[string]interface{}{
		"dataset": ds.Stats(),
	}

	if h.siteRepo != nil {
		if count, err := h.siteRepo.CountSites(c.Request.Context()); err == nil {
			stats["known_sites"] = count
		} else {
			slog.Error("Database error", "operation", "count_sites", "error", err)
		}
	}

	if h.runRepo != nil {
		runs, err := h.runRepo.RecentRuns(c.Request.Context(), recentRunsLimit)
		if err != nil {
			slog.Error("Database error", "operation", "recent_runs", "error", err)
		} else {
			views := make([]gin.H, 0, len(runs))
			for _, run := range runs {
				views = append(views, runView(run))
			}
			stats["recent_runs"] = views
		}
	}

	c.JSON(http.StatusOK, stats)
}

// GetPortals serves the public view: portals with at least medium trust.
func (h *Handler) GetPortals(c *gin.Context) {
	ds, ok := h.load(c)
	if !ok {
		return
	}

	portals := ds.PublicPortals()
	c.Header("X-Portal-Count", strconv.Itoa(len(portals)))
	c.JSON(http.StatusOK, gin.H{
		"updated": ds.Updated,
		"portals": portals,
	})
}

// GetPortalsFeed serves the public portals as RSS, newest additions first.
func (h *Handler) GetPortalsFeed(c *gin.Context) {
	ds, ok := h.load(c)
	if !ok {
		return
	}

	updated, _ := time.Parse(time.RFC3339, ds.Updated)
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	selfLink := fmt.Sprintf("%s://%s/portals.rss", scheme, c.Request.Host)

	rss := h.generator.Run(ds.PublicPortals(), updated, selfLink)

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.Header("X-Last-Updated", ds.Updated)
	c.String(http.StatusOK, rss)
}

func (h *Handler) APIListPortals(c *gin.Context) {
	ds, ok := h.load(c)
	if !ok {
		return
	}

	var trust portal.Trust
	if q := c.Query("trust"); q != "" {
		t, err := portal.ParseTrust(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		trust = t
	}
	category := portal.Category(strings.ToLower(c.Query("category")))
	featuredOnly := c.Query("featured") == "true"

	portals := make([]portal.Portal, 0, len(ds.Portals))
	for _, p := range ds.Portals {
		if trust != "" && p.TrustLevel() != trust {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		if featuredOnly && !p.Featured {
			continue
		}
		portals = append(portals, p)
	}

	c.JSON(http.StatusOK, gin.H{
		"portals": portals,
		"total":   len(portals),
	})
}

func (h *Handler) APIGetPortal(c *gin.Context) {
	domain := c.Param("domain")
	if domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing domain parameter"})
		return
	}
	domain, err := portal.CanonicalDomain(domain)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ds, ok := h.load(c)
	if !ok {
		return
	}

	details := gin.H{"domain": domain}
	if p, found := ds.Portal(domain); found {
		details["portal"] = p
	} else if ex, found := ds.Exclusion(domain); found {
		details["exclusion"] = exclusionView(ex)
	} else {
		c.JSON(http.StatusNotFound, gin.H{"error": "Domain not in dataset"})
		return
	}

	if h.siteRepo != nil {
		site, err := h.siteRepo.GetSite(c.Request.Context(), domain)
		if err != nil {
			slog.Error("Database error", "operation", "get_site", "domain", domain, "error", err)
		} else if site != nil {
			details["history"] = gin.H{
				"source":       site.Source,
				"first_seen":   site.FirstSeen,
				"last_seen":    site.LastSeen,
				"fetch_status": site.FetchStatus,
				"status_code":  site.StatusCode,
				"relevance":    site.Relevance,
				"outcome":      site.Outcome,
			}
		}
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIListExclusions(c *gin.Context) {
	category := portal.ExclusionCategory(strings.ToLower(c.Query("category")))
	if category != "" && !category.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown exclusion category"})
		return
	}

	ds, ok := h.load(c)
	if !ok {
		return
	}

	exclusions := make([]gin.H, 0)
	for _, ex := range ds.Exclusions() {
		if category != "" && ex.Category != category {
			continue
		}
		exclusions = append(exclusions, exclusionView(ex))
	}

	c.JSON(http.StatusOK, gin.H{
		"exclusions": exclusions,
		"total":      len(exclusions),
	})
}

func exclusionView(ex portal.Exclusion) gin.H {
	return gin.H{
		"domain":   ex.Domain,
		"category": ex.Category,
		"reason":   ex.Reason,
	}
}

func runView(run database.Run) gin.H {
	view := gin.H{
		"id":         run.ID,
		"mode":       run.Mode,
		"started_at": run.StartedAt,
		"candidates": run.Candidates,
		"accepted":   run.Accepted,
		"excluded":   run.Excluded,
		"errored":    run.Errored,
		"unchanged":  run.Unchanged,
		"added":      run.Added,
		"removed":    run.Removed,
		"changed":    run.Changed,
	}
	if run.FinishedAt != nil {
		view["finished_at"] = *run.FinishedAt
	}
	if run.Error != "" {
		view["error"] = run.Error
	}
	return view
}
