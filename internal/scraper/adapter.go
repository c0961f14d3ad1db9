package scraper

import (
	"context"

	"commodity-price-portal/internal/models"
)

// Source produces raw price observations. Implementations neither normalize labels nor write to the store.
type Source interface {
	Name() string
	Strategy() models.FetchStrategy
	Fetch(ctx context.Context) ([]models.PriceObservation, error)
}
