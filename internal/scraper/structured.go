package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/models"
	"commodity-price-portal/internal/ratelimit"

	"go.uber.org/zap"
)

const maxBodyBytes = 10 << 20

// field aliases accepted in structured payload rows
var (
	commodityKeys = []string{"commodity", "komoditas", "commodity_name", "name"}
	regionKeys    = []string{"region", "province", "provinsi", "region_name"}
	priceKeys     = []string{"price", "harga", "value"}
	unitKeys      = []string{"unit", "satuan"}
	dateKeys      = []string{"date", "tanggal", "price_date"}
)

// StructuredConfig configures the machine-readable endpoint adapter
type StructuredConfig struct {
	Endpoints []string
	Timeout   time.Duration
	UserAgent string
	Location  *time.Location
}

// StructuredAdapter fetches JSON price tables from one or more endpoints
type StructuredAdapter struct {
	cfg    StructuredConfig
	client *http.Client
	pacer  *ratelimit.Pacer
	clock  clock.Clock
	log    *zap.Logger
}

// NewStructuredAdapter creates the adapter. pacer may be nil.
func NewStructuredAdapter(cfg StructuredConfig, pacer *ratelimit.Pacer, clk clock.Clock, log *zap.Logger) *StructuredAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if clk == nil {
		clk = clock.New()
	}
	return &StructuredAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		pacer:  pacer,
		clock:  clk,
		log:    log.Named("structured"),
	}
}

func (a *StructuredAdapter) Name() string {
	return "structured"
}

func (a *StructuredAdapter) Strategy() models.FetchStrategy {
	return models.StrategyStructured
}

// Fetch calls every endpoint in order; any failing endpoint fails the whole fetch
func (a *StructuredAdapter) Fetch(ctx context.Context) ([]models.PriceObservation, error) {
	if len(a.cfg.Endpoints) == 0 {
		return nil, a.fail(CauseNetwork, 0, errors.New("no endpoints configured"))
	}

	var all []models.PriceObservation
	for _, endpoint := range a.cfg.Endpoints {
		if err := a.pacer.Wait(ctx); err != nil {
			return nil, a.fail(CauseNetwork, 0, err)
		}

		body, err := a.get(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		obs, skipped, err := a.parse(body, endpoint)
		if err != nil {
			return nil, a.fail(CauseParse, 0, fmt.Errorf("%s: %w", endpoint, err))
		}
		if skipped > 0 {
			a.log.Debug("Skipped unusable rows", zap.String("endpoint", endpoint), zap.Int("skipped", skipped))
		}
		all = append(all, obs...)
	}

	if len(all) == 0 {
		return nil, a.fail(CauseParse, 0, errors.New("no usable rows"))
	}
	a.log.Info("Fetched observations", zap.Int("count", len(all)), zap.Int("endpoints", len(a.cfg.Endpoints)))
	return all, nil
}

func (a *StructuredAdapter) get(ctx context.Context, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, a.fail(CauseNetwork, 0, err)
	}
	applyBrowserHeaders(req, a.cfg.UserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, a.fail(CauseNetwork, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, a.fail(CauseHTTPStatus, resp.StatusCode, fmt.Errorf("GET %s", endpoint))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, a.fail(CauseNetwork, 0, err)
	}
	return body, nil
}

// parse accepts a bare array of rows or an object carrying the rows under "data"
func (a *StructuredAdapter) parse(body []byte, endpoint string) ([]models.PriceObservation, int, error) {
	var rows []map[string]interface{}
	if err := json.Unmarshal(body, &rows); err != nil {
		var wrapped struct {
			Data []map[string]interface{} `json:"data"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil {
			return nil, 0, fmt.Errorf("decode payload: %w", err)
		}
		rows = wrapped.Data
	}

	now := a.clock.Now()
	out := make([]models.PriceObservation, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		obs, ok := a.rowToObservation(row, now)
		if !ok {
			skipped++
			continue
		}
		obs.SourceRef = endpoint
		out = append(out, obs)
	}
	return out, skipped, nil
}

func (a *StructuredAdapter) rowToObservation(row map[string]interface{}, now time.Time) (models.PriceObservation, bool) {
	commodity := stringField(row, commodityKeys)
	region := stringField(row, regionKeys)
	if commodity == "" || region == "" {
		return models.PriceObservation{}, false
	}

	var price int64
	var err error = errNoPrice
	for _, k := range priceKeys {
		if v, ok := row[k]; ok {
			price, err = priceFromJSON(v)
			break
		}
	}
	if err != nil {
		return models.PriceObservation{}, false
	}

	observedAt := now
	if raw := stringField(row, dateKeys); raw != "" {
		t, err := parseDate(raw, a.cfg.Location)
		if err != nil {
			return models.PriceObservation{}, false
		}
		observedAt = t
	}

	return models.PriceObservation{
		CommodityLabel: commodity,
		RegionLabel:    region,
		Price:          price,
		Unit:           stringField(row, unitKeys),
		ObservedAt:     observedAt,
	}, true
}

func stringField(row map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if v, ok := row[k].(string); ok {
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func (a *StructuredAdapter) fail(cause Cause, status int, err error) *FetchFailure {
	return &FetchFailure{Adapter: a.Name(), Cause: cause, StatusCode: status, Err: err}
}

// applyBrowserHeaders sets browser-like headers; some price portals reject bare clients
func applyBrowserHeaders(req *http.Request, userAgent string) {
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "id-ID,id;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
}
