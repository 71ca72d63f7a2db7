package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/councilflow/councilflow/api"
	"github.com/councilflow/councilflow/internal/cache"
	"github.com/councilflow/councilflow/llm"
)

const modelsCacheKey = "councilflow:models"

// CacheMetrics counts cache hits and misses. Satisfied by *metrics.Collector.
type CacheMetrics interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// ModelsHandler serves the upstream model catalog, optionally cached in
// Redis. The catalog changes rarely and the upstream listing is slow, so a
// stale-but-fast answer is the right trade.
type ModelsHandler struct {
	provider llm.Provider
	cache    *cache.Manager
	ttl      time.Duration
	metrics  CacheMetrics
	logger   *zap.Logger
}

// ModelsOption customizes a ModelsHandler.
type ModelsOption func(*ModelsHandler)

// WithModelsCache attaches a Redis cache with the given entry TTL.
func WithModelsCache(c *cache.Manager, ttl time.Duration) ModelsOption {
	return func(h *ModelsHandler) {
		h.cache = c
		h.ttl = ttl
	}
}

// WithCacheMetrics attaches hit/miss counters.
func WithCacheMetrics(m CacheMetrics) ModelsOption {
	return func(h *ModelsHandler) { h.metrics = m }
}

// NewModelsHandler creates the handler. Without WithModelsCache every request
// hits the upstream listing.
func NewModelsHandler(provider llm.Provider, logger *zap.Logger, opts ...ModelsOption) *ModelsHandler {
	h := &ModelsHandler{
		provider: provider,
		logger:   logger.With(zap.String("component", "models_handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleList serves GET /api/models.
func (h *ModelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		var cached []api.ModelInfo
		if err := h.cache.GetJSON(ctx, modelsCacheKey, &cached); err == nil {
			if h.metrics != nil {
				h.metrics.RecordCacheHit("models")
			}
			WriteSuccess(w, cached)
			return
		} else if !cache.IsCacheMiss(err) {
			h.logger.Warn("model cache read failed", zap.Error(err))
		}
		if h.metrics != nil {
			h.metrics.RecordCacheMiss("models")
		}
	}

	models, err := h.provider.ListModels(ctx)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	infos := make([]api.ModelInfo, 0, len(models))
	for _, m := range models {
		infos = append(infos, api.ModelInfo{
			ID:            m.ID,
			Name:          m.Name,
			ContextLength: m.Context,
		})
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(ctx, modelsCacheKey, infos, h.ttl); err != nil {
			h.logger.Warn("model cache write failed", zap.Error(err))
		}
	}

	WriteSuccess(w, infos)
}
