package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/analytics"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/tracing"
)

type SearchExecutor interface {
	Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
}

type StatsProvider interface {
	Stats() (indexer.Stats, error)
}

type Rebuilder interface {
	Rebuild(ctx context.Context, reason string) (*indexer.Snapshot, error)
}

// Tracker receives one event per search request.
type Tracker interface {
	Track(analytics.SearchEvent)
}

// Options configures a Handler. Cache, Rebuilder, Metrics and Analytics
// may be nil.
type Options struct {
	Executor     SearchExecutor
	Stats        StatsProvider
	Cache        *cache.QueryCache
	Rebuilder    Rebuilder
	Metrics      *metrics.Metrics
	Analytics    Tracker
	DefaultLimit int
	MaxResults   int
	QueryTimeout time.Duration
}

type Handler struct {
	executor     SearchExecutor
	stats        StatsProvider
	cache        *cache.QueryCache
	rebuilder    Rebuilder
	metrics      *metrics.Metrics
	analytics    Tracker
	defaultLimit int
	maxResults   int
	queryTimeout time.Duration
	logger       *slog.Logger
}

func New(opts Options) *Handler {
	return &Handler{
		executor:     opts.Executor,
		stats:        opts.Stats,
		cache:        opts.Cache,
		rebuilder:    opts.Rebuilder,
		metrics:      opts.Metrics,
		analytics:    opts.Analytics,
		defaultLimit: opts.DefaultLimit,
		maxResults:   opts.MaxResults,
		queryTimeout: opts.QueryTimeout,
		logger:       logger.WithComponent("search-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.StartSpan(r.Context(), "search", middleware.GetRequestID(r.Context()))
	defer func() {
		span.End()
		span.Log()
	}()
	log := logger.FromContext(ctx)

	query, limit, err := h.searchParams(r)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	plan := parser.Parse(query)
	span.SetAttr("query", query)
	span.SetAttr("limit", limit)

	var result *executor.SearchResult
	cacheStatus := "disabled"
	err = resilience.WithTimeout(ctx, h.queryTimeout, "search", func(ctx context.Context) error {
		compute := func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, plan, limit)
		}
		if h.cache == nil {
			var err error
			result, err = compute()
			return err
		}
		res, hit, err := h.cache.GetOrCompute(ctx, plan, limit, compute)
		if err != nil {
			return err
		}
		result = res
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
		return nil
	})
	if err != nil {
		h.observe("error", "none", start, 0)
		h.track(plan, nil, "none", start, r)
		log.Error("search execution failed", "query", query, "error", err)
		h.writeErr(w, err)
		return
	}

	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	h.observe(resultType, cacheStatus, start, len(result.Results))
	h.track(plan, result, cacheStatus, start, r)
	span.SetAttr("cache", cacheStatus)
	span.SetAttr("total_hits", result.TotalHits)

	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache", cacheStatus,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

// searchParams reads q and limit. limit defaults to defaultLimit and is
// clamped to maxResults.
func (h *Handler) searchParams(r *http.Request) (string, int, error) {
	query := r.URL.Query().Get("q")
	if query == "" {
		return "", 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required")
	}
	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return "", 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer, got %q", raw)
		}
		limit = min(parsed, h.maxResults)
	}
	return query, limit, nil
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats()
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.rebuilder == nil {
		h.writeError(w, http.StatusServiceUnavailable, "rebuild is disabled")
		return
	}
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "http"
	}
	snap, err := h.rebuilder.Rebuild(r.Context(), reason)
	if err != nil {
		logger.FromContext(r.Context()).Error("rebuild failed", "reason", reason, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "rebuild failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "rebuilt",
		"version":  snap.Version,
		"records":  snap.Cities.Len(),
		"keys":     snap.Index.Len(),
		"built_at": snap.BuiltAt,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	counts := h.cache.Breaker().Counts()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":           hits,
		"misses":         misses,
		"total":          total,
		"hit_rate":       fmt.Sprintf("%.1f%%", hitRate),
		"breaker":        counts.State.String(),
		"breaker_counts": counts,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) observe(resultType, cacheStatus string, start time.Time, returned int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	if resultType == "error" {
		return
	}
	h.metrics.SearchResultsCount.Observe(float64(returned))
	switch cacheStatus {
	case "hit":
		h.metrics.CacheHitsTotal.Inc()
	case "miss":
		h.metrics.CacheMissesTotal.Inc()
	}
}

// track reports a search to analytics. A nil result marks a failed search.
func (h *Handler) track(plan *parser.QueryPlan, result *executor.SearchResult, cacheStatus string, start time.Time, r *http.Request) {
	if h.analytics == nil {
		return
	}
	e := analytics.NewSearchEvent(plan, middleware.GetRequestID(r.Context()), time.Since(start))
	e.Cache = cacheStatus
	if result == nil {
		e.Failed = true
	} else {
		e.TotalHits = result.TotalHits
		e.Returned = len(result.Results)
		e.Snapshot = result.SnapshotVersion
	}
	h.analytics.Track(e)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeErr maps err to a status. Internal failures get a generic message.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		h.writeError(w, status, appErr.Message)
	case status == http.StatusInternalServerError:
		h.writeError(w, status, "internal error")
	default:
		h.writeError(w, status, err.Error())
	}
}
