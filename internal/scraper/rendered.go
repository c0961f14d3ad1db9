package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/models"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// BrowserSession is one live headless browser. Close must release every process and tab it owns.
type BrowserSession interface {
	Render(ctx context.Context, url, waitSelector string) (string, error)
	Close()
}

// BrowserLauncher starts a fresh browser session
type BrowserLauncher func(ctx context.Context) (BrowserSession, error)

// Columns maps table cells to observation fields; a negative index means the page has no such column
type Columns struct {
	Commodity int
	Region    int
	Price     int
	Unit      int
	Date      int
}

// RenderedConfig configures the headless browser fallback
type RenderedConfig struct {
	URL          string
	WaitSelector string
	RowSelector  string
	Columns      Columns
	Timeout      time.Duration
	Location     *time.Location
}

// RenderedAdapter loads the public price page in a headless browser and scrapes its table
type RenderedAdapter struct {
	cfg    RenderedConfig
	launch BrowserLauncher
	clock  clock.Clock
	log    *zap.Logger
}

func NewRenderedAdapter(cfg RenderedConfig, launch BrowserLauncher, clk clock.Clock, log *zap.Logger) *RenderedAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = "table"
	}
	if cfg.RowSelector == "" {
		cfg.RowSelector = "table tbody tr"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if clk == nil {
		clk = clock.New()
	}
	return &RenderedAdapter{
		cfg:    cfg,
		launch: launch,
		clock:  clk,
		log:    log.Named("rendered"),
	}
}

func (a *RenderedAdapter) Name() string {
	return "rendered"
}

func (a *RenderedAdapter) Strategy() models.FetchStrategy {
	return models.StrategyRendered
}

// Fetch acquires a browser for this call only; it is closed on every return path
func (a *RenderedAdapter) Fetch(ctx context.Context) ([]models.PriceObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	session, err := a.launch(ctx)
	if err != nil {
		return nil, a.classify(ctx, fmt.Errorf("launch browser: %w", err))
	}
	defer session.Close()

	html, err := session.Render(ctx, a.cfg.URL, a.cfg.WaitSelector)
	if err != nil {
		return nil, a.classify(ctx, err)
	}
	a.log.Debug("Rendered page", zap.String("url", a.cfg.URL), zap.Int("bytes", len(html)))

	obs, err := a.extract(html)
	if err != nil {
		return nil, a.fail(CauseNoContent, err)
	}
	if len(obs) == 0 {
		return nil, a.fail(CauseNoContent, fmt.Errorf("no rows matched %q", a.cfg.RowSelector))
	}

	a.log.Info("Fetched observations", zap.Int("count", len(obs)))
	return obs, nil
}

func (a *RenderedAdapter) classify(ctx context.Context, err error) *FetchFailure {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return a.fail(CauseNavigationTimeout, err)
	}
	return a.fail(CauseBrowserCrash, err)
}

func (a *RenderedAdapter) fail(cause Cause, err error) *FetchFailure {
	return &FetchFailure{Adapter: a.Name(), Cause: cause, Err: err}
}

// extract reads one observation per table row. Header rows and rows without a usable price are skipped.
func (a *RenderedAdapter) extract(html string) ([]models.PriceObservation, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	cols := a.cfg.Columns
	now := a.clock.Now()
	var out []models.PriceObservation

	doc.Find(a.cfg.RowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}
		cell := func(i int) string {
			if i < 0 || i >= cells.Length() {
				return ""
			}
			return strings.Join(strings.Fields(cells.Eq(i).Text()), " ")
		}

		commodity, region := cell(cols.Commodity), cell(cols.Region)
		if commodity == "" || region == "" {
			return
		}
		price, err := parsePrice(cell(cols.Price))
		if err != nil {
			return
		}

		observedAt := now
		if raw := cell(cols.Date); raw != "" {
			t, err := parseDate(raw, a.cfg.Location)
			if err != nil {
				return
			}
			observedAt = t
		}

		out = append(out, models.PriceObservation{
			CommodityLabel: commodity,
			RegionLabel:    region,
			Price:          price,
			Unit:           cell(cols.Unit),
			ObservedAt:     observedAt,
			SourceRef:      a.cfg.URL,
		})
	})

	return out, nil
}
