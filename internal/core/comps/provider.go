package comps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
)

type SourceMode string

const (
	// ModeLive always asks the marketplace.
	ModeLive SourceMode = "live"
	// ModeCacheFirst serves a fresh cached result before asking the marketplace.
	ModeCacheFirst SourceMode = "cache_first"
	// ModeManual only aggregates comps supplied with the request.
	ModeManual SourceMode = "manual"
)

func ParseSourceMode(raw string) (SourceMode, error) {
	switch mode := SourceMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case ModeLive, ModeCacheFirst, ModeManual:
		return mode, nil
	case "":
		return ModeCacheFirst, nil
	}
	return "", fmt.Errorf("unknown comps source mode %q", raw)
}

// SourceConfig selects how comps are resolved. It is fixed at construction.
type SourceConfig struct {
	Mode     SourceMode
	CacheTTL time.Duration
	Limit    int
	Rules    Rules
}

type Provider struct {
	cfg    SourceConfig
	live   ports.SoldListingSource
	cache  ports.CompsCache
	logger *zap.Logger
	now    func() time.Time
}

func NewProvider(cfg SourceConfig, live ports.SoldListingSource, cache ports.CompsCache, logger *zap.Logger) *Provider {
	if cfg.Mode == "" {
		cfg.Mode = ModeCacheFirst
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 6 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		live:   live,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

func (p *Provider) Mode() SourceMode {
	return p.cfg.Mode
}

// Resolve returns aggregated comps for a request. Thin or missing data is
// reported inside the result; only collaborator faults are errors.
func (p *Provider) Resolve(ctx context.Context, req ports.CompsRequest) (domain.CompsResult, error) {
	rules := p.cfg.Rules
	if rules.MaxAge > 0 && rules.AsOf.IsZero() {
		rules.AsOf = p.now().UTC()
	}

	if len(req.Manual) > 0 {
		result := Aggregate(req.Manual, rules, domain.CompsSourceManual)
		result.Query = req.Query
		return result, nil
	}

	query := strings.TrimSpace(req.Query)
	if query == "" || p.cfg.Mode == ModeManual || p.live == nil {
		result := Aggregate(nil, rules, domain.CompsSourceManual)
		result.Query = query
		return result, nil
	}

	key := CacheKey(req.Category, query)
	if p.cfg.Mode == ModeCacheFirst && p.cache != nil {
		cached, ok, err := p.cache.Get(ctx, key)
		switch {
		case err != nil:
			p.logger.Warn("comps cache read failed", zap.String("key", key), zap.Error(err))
		case ok && cached != nil:
			result := *cached
			result.Source = domain.CompsSourceCached
			return result, nil
		}
	}

	sold, err := p.live.SearchSold(ctx, ports.SoldQuery{Keywords: query, Category: req.Category, Limit: p.cfg.Limit})
	if err != nil {
		if domain.IsKind(err, domain.ErrTemporary) {
			return domain.CompsResult{}, err
		}
		return domain.CompsResult{}, domain.WrapError(domain.ErrLookupFailed, "search sold listings", err)
	}
	result := Aggregate(sold, rules, domain.CompsSourceSoldAPI)
	result.Query = query

	if p.cache != nil && result.CleanedCount > 0 {
		if err := p.cache.Set(ctx, key, result, p.cfg.CacheTTL); err != nil {
			p.logger.Warn("comps cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return result, nil
}

// CacheKey is stable across casing and punctuation differences in the query.
func CacheKey(category domain.Category, query string) string {
	if category == "" {
		category = domain.CategoryGeneral
	}
	return "comps:" + string(category) + ":" + strings.ReplaceAll(normalizeText(query), " ", "-")
}
