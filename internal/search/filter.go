package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"commodity-price-portal/internal/models"

	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

type FilterParams struct {
	Query       string
	Commodities []models.Commodity
	MinPrice    *int64
	MaxPrice    *int64
	From        *time.Time
	To          *time.Time
	SortBy      string
	Limit       int64
}

var sortable = map[string]bool{
	"price:asc":      true,
	"price:desc":     true,
	"price_day:asc":  true,
	"price_day:desc": true,
}

// Filter renders the params as a Meilisearch filter expression
func (p FilterParams) Filter() (string, error) {
	var filters []string

	if len(p.Commodities) > 0 {
		parts := make([]string, len(p.Commodities))
		for i, c := range p.Commodities {
			if !c.IsValid() {
				return "", fmt.Errorf("unknown commodity %q", c)
			}
			parts[i] = fmt.Sprintf("commodity = '%s'", c)
		}
		filters = append(filters, fmt.Sprintf("(%s)", strings.Join(parts, " OR ")))
	}

	// Price range filter
	if p.MinPrice != nil {
		filters = append(filters, fmt.Sprintf("price >= %d", *p.MinPrice))
	}
	if p.MaxPrice != nil {
		filters = append(filters, fmt.Sprintf("price <= %d", *p.MaxPrice))
	}

	// Date range filter, inclusive days
	if p.From != nil {
		filters = append(filters, fmt.Sprintf("price_day >= %d", dayStart(*p.From)))
	}
	if p.To != nil {
		filters = append(filters, fmt.Sprintf("price_day <= %d", dayStart(*p.To)))
	}

	return strings.Join(filters, " AND "), nil
}

func (p FilterParams) request() (*meilisearch.SearchRequest, error) {
	filter, err := p.Filter()
	if err != nil {
		return nil, err
	}

	// Default limit
	if p.Limit <= 0 {
		p.Limit = 20
	}
	req := &meilisearch.SearchRequest{Limit: p.Limit}
	if filter != "" {
		req.Filter = filter
	}

	if p.SortBy != "" {
		if !sortable[p.SortBy] {
			return nil, fmt.Errorf("unsupported sort %q", p.SortBy)
		}
		req.Sort = []string{p.SortBy}
	}
	return req, nil
}

// decodeHits converts raw hits through JSON; hits that do not fit the document shape are dropped
func decodeHits(hits []interface{}, log *zap.Logger) []PriceDocument {
	docs := make([]PriceDocument, 0, len(hits))
	for _, hit := range hits {
		hitJSON, err := json.Marshal(hit)
		if err != nil {
			continue
		}

		var doc PriceDocument
		if err := json.Unmarshal(hitJSON, &doc); err != nil {
			log.Debug("Skipping undecodable hit", zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}
