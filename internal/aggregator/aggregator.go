package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"commodity-price-portal/internal/models"
	"commodity-price-portal/internal/persistence"

	"go.uber.org/zap"
)

// Aggregator derives the NATIONAL record of each commodity from that day's provincial records
type Aggregator struct {
	store  *persistence.Store
	writer *persistence.Writer
	log    *zap.Logger
}

func New(store *persistence.Store, writer *persistence.Writer, log *zap.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		writer: writer,
		log:    log.Named("aggregator"),
	}
}

// ComputeNationalAverages writes round(mean) of the active regional prices for every commodity
// that has at least one on date. Commodities without inputs get no national record.
// It returns the national records written. A failure on one commodity does not stop the others.
func (a *Aggregator) ComputeNationalAverages(ctx context.Context, date time.Time) ([]models.CommodityRecord, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var written []models.CommodityRecord
	var errs []error
	for _, commodity := range models.AllCommodities {
		recs, err := a.store.ActiveRegionalRecords(ctx, commodity, day)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", commodity, err))
			continue
		}
		if len(recs) == 0 {
			continue
		}

		avg := Mean(recs)
		obs := models.NormalizedObservation{
			Commodity:  commodity,
			Region:     models.RegionNational,
			Price:      avg,
			Unit:       recs[0].Unit,
			ObservedAt: time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, a.writer.Location()),
			SourceRef:  fmt.Sprintf("aggregate:%d", len(recs)),
		}
		if err := a.writer.UpsertOne(ctx, "", obs); err != nil {
			errs = append(errs, err)
			continue
		}

		written = append(written, models.CommodityRecord{
			Commodity: commodity,
			Region:    models.RegionNational,
			PriceDate: day,
			Price:     avg,
			Unit:      obs.Unit,
			SourceRef: obs.SourceRef,
			Active:    true,
		})
	}

	a.log.Info("National averages computed",
		zap.String("date", day.Format("2006-01-02")),
		zap.Int("commodities", len(written)),
		zap.Int("errors", len(errs)),
	)
	return written, errors.Join(errs...)
}

// Mean is the arithmetic mean of the record prices rounded half away from zero
func Mean(recs []models.CommodityRecord) int64 {
	if len(recs) == 0 {
		return 0
	}
	var sum float64
	for _, r := range recs {
		sum += float64(r.Price)
	}
	return int64(math.Round(sum / float64(len(recs))))
}
