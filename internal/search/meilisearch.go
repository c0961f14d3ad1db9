package search

import (
	"context"
	"fmt"
	"time"

	"commodity-price-portal/internal/models"

	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// PriceDocument is one NATIONAL record as stored in the search index
type PriceDocument struct {
	ID        string `json:"id"`
	Commodity string `json:"commodity"`
	Region    string `json:"region"`
	Price     int64  `json:"price"`
	Unit      string `json:"unit"`
	PriceDate string `json:"price_date"`
	// PriceDay is the date as a unix timestamp so range filters work
	PriceDay  int64  `json:"price_day"`
	SourceRef string `json:"source_ref,omitempty"`
}

// NewPriceDocument converts a record; the id is stable per (commodity, region, day) so re-publishing replaces
func NewPriceDocument(rec models.CommodityRecord) PriceDocument {
	day := rec.PriceDate.UTC()
	return PriceDocument{
		ID:        fmt.Sprintf("%s_%s_%s", rec.Commodity, rec.Region, day.Format("20060102")),
		Commodity: string(rec.Commodity),
		Region:    string(rec.Region),
		Price:     rec.Price,
		Unit:      rec.Unit,
		PriceDate: day.Format("2006-01-02"),
		PriceDay:  day.Unix(),
		SourceRef: rec.SourceRef,
	}
}

type SearchClient struct {
	client *meilisearch.Client
	index  string
	log    *zap.Logger
}

func NewSearchClient(host, apiKey, index string, log *zap.Logger) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})
	if index == "" {
		index = "commodity_prices"
	}

	return &SearchClient{
		client: client,
		index:  index,
		log:    log.Named("search"),
	}
}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	// Create index if it doesn't exist
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	// Ignore error if index already exists
	if err != nil && err.Error() != "index already exists" {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"commodity",
		"region",
		"unit",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"commodity",
		"region",
		"price",
		"price_day",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"price",
		"price_day",
	})
	return err
}

// PublishNational indexes the given records; anything that is not NATIONAL is ignored
func (s *SearchClient) PublishNational(ctx context.Context, records []models.CommodityRecord) error {
	docs := make([]PriceDocument, 0, len(records))
	for _, rec := range records {
		if !rec.Region.IsNational() {
			continue
		}
		docs = append(docs, NewPriceDocument(rec))
	}
	if len(docs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	task, err := s.client.Index(s.index).AddDocuments(docs, "id")
	if err != nil {
		return fmt.Errorf("failed to publish %d national prices: %w", len(docs), err)
	}
	s.log.Info("Published national prices", zap.Int("documents", len(docs)), zap.Int64("task_uid", task.TaskUID))
	return nil
}

// SearchResult holds one page of hits
type SearchResult struct {
	Hits           []PriceDocument `json:"hits"`
	TotalHits      int64           `json:"total_hits"`
	ProcessingTime int64           `json:"processing_time_ms"`
}

// Search runs a filtered query against the national price index
func (s *SearchClient) Search(ctx context.Context, params FilterParams) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req, err := params.request()
	if err != nil {
		return nil, err
	}

	res, err := s.client.Index(s.index).Search(params.Query, req)
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Hits:           decodeHits(res.Hits, s.log),
		TotalHits:      res.EstimatedTotalHits,
		ProcessingTime: res.ProcessingTimeMs,
	}, nil
}

// Health reports whether the Meilisearch server answers
func (s *SearchClient) Health() bool {
	return s.client.IsHealthy()
}

func dayStart(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}
