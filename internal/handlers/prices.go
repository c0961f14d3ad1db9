package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"commodity-price-portal/internal/models"
	"commodity-price-portal/internal/normalizer"
	"commodity-price-portal/internal/search"
	"commodity-price-portal/internal/subscription"
	"commodity-price-portal/internal/tier"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Searcher is the search index as the price handler uses it
type Searcher interface {
	Search(ctx context.Context, params search.FilterParams) (*search.SearchResult, error)
}

// PriceHandler serves price reads through the tier gateway
type PriceHandler struct {
	gateway      *tier.Gateway
	entitlements subscription.EntitlementSource
	normalizer   *normalizer.Normalizer
	searcher     Searcher
	loc          *time.Location
	log          *zap.Logger
}

// NewPriceHandler creates a new price handler. searcher may be nil when search is disabled.
func NewPriceHandler(gateway *tier.Gateway, entitlements subscription.EntitlementSource, norm *normalizer.Normalizer, searcher Searcher, loc *time.Location, log *zap.Logger) *PriceHandler {
	if norm == nil {
		norm = normalizer.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &PriceHandler{
		gateway:      gateway,
		entitlements: entitlements,
		normalizer:   norm,
		searcher:     searcher,
		loc:          loc,
		log:          log.Named("prices"),
	}
}

// GetNational returns NATIONAL prices; a history window needs premium
func (h *PriceHandler) GetNational(c *gin.Context) {
	h.read(c, tier.Scope{Kind: tier.ScopeNational})
}

// GetRegional returns one province's prices; premium only
func (h *PriceHandler) GetRegional(c *gin.Context) {
	region, ok := h.normalizer.Region(c.Param("region"))
	if !ok || region.IsNational() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown region"})
		return
	}
	h.read(c, tier.Scope{Kind: tier.ScopeRegional, Region: region})
}

func (h *PriceHandler) read(c *gin.Context, scope tier.Scope) {
	var err error
	if scope.Commodities, err = h.commodities(c.Query("commodities")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if scope.Date, err = h.date(c.Query("date")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	if v := c.Query("history_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "history_days must be a non-negative integer"})
			return
		}
		scope.HistoryDays = days
	}

	ent, err := h.entitlements.GetEntitlement(c.Request.Context(), c.GetHeader(AccountHeader))
	if err != nil {
		h.log.Error("Entitlement lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "entitlement lookup failed"})
		return
	}

	view, err := h.gateway.ReadPrices(c.Request.Context(), scope, ent)
	switch {
	case errors.Is(err, tier.ErrEntitlementRequired):
		c.JSON(http.StatusForbidden, gin.H{"error": "upgrade_required"})
		return
	case errors.Is(err, tier.ErrInvalidScope):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.log.Error("Price read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read prices"})
		return
	}

	if view.Records == nil {
		view.Records = []models.CommodityRecord{}
	}
	c.JSON(http.StatusOK, view)
}

// Search queries the national price index
func (h *PriceHandler) Search(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not enabled"})
		return
	}

	params := search.FilterParams{
		Query:  c.Query("q"),
		SortBy: c.Query("sort"),
	}
	var err error
	if params.Commodities, err = h.commodities(c.Query("commodities")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if params.MinPrice, err = optionalInt(c.Query("min_price")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_price must be an integer"})
		return
	}
	if params.MaxPrice, err = optionalInt(c.Query("max_price")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_price must be an integer"})
		return
	}
	if params.From, err = h.date(c.Query("from")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
		return
	}
	if params.To, err = h.date(c.Query("to")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
		return
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.ParseInt(v, 10, 64)
		if err != nil || limit < 0 || limit > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 0 and 100"})
			return
		}
		params.Limit = limit
	}

	res, err := h.searcher.Search(c.Request.Context(), params)
	if err != nil {
		h.log.Warn("Search failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// commodities parses a comma separated list of labels or canonical ids
func (h *PriceHandler) commodities(raw string) ([]models.Commodity, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []models.Commodity
	for _, label := range strings.Split(raw, ",") {
		c, ok := h.normalizer.Commodity(label)
		if !ok {
			return nil, errors.New("unknown commodity " + strconv.Quote(strings.TrimSpace(label)))
		}
		out = append(out, c)
	}
	return out, nil
}

func (h *PriceHandler) date(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(dateLayout, raw, h.loc)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalInt(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
