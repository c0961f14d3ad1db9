package tier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/models"
	"commodity-price-portal/internal/persistence"

	"go.uber.org/zap"
)

var (
	// ErrEntitlementRequired means the scope needs an unexpired premium entitlement
	ErrEntitlementRequired = errors.New("premium entitlement required")
	// ErrInvalidScope means the request names an unknown region or commodity
	ErrInvalidScope = errors.New("invalid price scope")
)

// ScopeKind selects national or regional data
type ScopeKind string

const (
	ScopeNational ScopeKind = "national"
	ScopeRegional ScopeKind = "regional"
)

// Scope describes what a caller wants to read
type Scope struct {
	Kind        ScopeKind
	Region      models.Region
	Commodities []models.Commodity
	// Date pins the calendar day; nil means the latest available day per commodity
	Date *time.Time
	// HistoryDays > 0 asks for a history window ending at Date (or today)
	HistoryDays int
}

// PriceView is what the gateway hands back
type PriceView struct {
	Kind        ScopeKind                  `json:"scope"`
	Region      models.Region              `json:"region"`
	Entitlement models.EntitlementStatus   `json:"entitlement"`
	Records     []models.CommodityRecord   `json:"records"`
	History     []models.PriceHistoryEntry `json:"history,omitempty"`
	From        *time.Time                 `json:"from,omitempty"`
	To          *time.Time                 `json:"to,omitempty"`
}

// Config bounds what the gateway serves
type Config struct {
	LookbackDays   int
	MaxHistoryDays int
	Location       *time.Location
}

// Gateway applies the free/premium policy to price reads
type Gateway struct {
	store *persistence.Store
	cfg   Config
	clock clock.Clock
	log   *zap.Logger
}

func NewGateway(store *persistence.Store, cfg Config, clk clock.Clock, log *zap.Logger) *Gateway {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 7
	}
	if cfg.MaxHistoryDays <= 0 {
		cfg.MaxHistoryDays = 365
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Gateway{store: store, cfg: cfg, clock: clk, log: log.Named("tier")}
}

// ReadPrices serves national data to everyone. Regional data and history windows
// need a premium entitlement whose expiry is still in the future at read time.
func (g *Gateway) ReadPrices(ctx context.Context, scope Scope, ent models.Entitlement) (*PriceView, error) {
	if err := validate(scope); err != nil {
		return nil, err
	}

	now := g.clock.Now()
	premium := ent.IsPremiumAt(now)
	if (scope.Kind == ScopeRegional || scope.HistoryDays > 0) && !premium {
		g.log.Debug("Premium scope refused",
			zap.String("account_id", ent.AccountID),
			zap.String("status", string(ent.Status)),
			zap.String("scope", string(scope.Kind)),
		)
		return nil, ErrEntitlementRequired
	}

	region := models.RegionNational
	if scope.Kind == ScopeRegional {
		region = scope.Region
	}

	view := &PriceView{
		Kind:        scope.Kind,
		Region:      region,
		Entitlement: effectiveStatus(ent, premium),
	}

	today := models.DayOf(now, g.cfg.Location)
	var err error
	if scope.Date != nil {
		view.Records, err = g.store.RecordsForDay(ctx, region, scope.Commodities, models.DayOf(*scope.Date, g.cfg.Location))
	} else {
		since := today.AddDate(0, 0, -g.cfg.LookbackDays)
		view.Records, err = g.store.LatestRecords(ctx, region, scope.Commodities, since)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s prices: %w", region, err)
	}

	if scope.HistoryDays > 0 {
		days := min(scope.HistoryDays, g.cfg.MaxHistoryDays)
		to := today
		if scope.Date != nil {
			to = models.DayOf(*scope.Date, g.cfg.Location)
		}
		from := to.AddDate(0, 0, -(days - 1))
		view.History, err = g.store.History(ctx, region, scope.Commodities, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s history: %w", region, err)
		}
		view.From, view.To = &from, &to
	}

	return view, nil
}

func validate(scope Scope) error {
	switch scope.Kind {
	case ScopeNational:
	case ScopeRegional:
		if !scope.Region.IsValid() || scope.Region.IsNational() {
			return fmt.Errorf("%w: unknown region %q", ErrInvalidScope, scope.Region)
		}
	default:
		return fmt.Errorf("%w: unknown scope kind %q", ErrInvalidScope, scope.Kind)
	}
	for _, c := range scope.Commodities {
		if !c.IsValid() {
			return fmt.Errorf("%w: unknown commodity %q", ErrInvalidScope, c)
		}
	}
	if scope.HistoryDays < 0 {
		return fmt.Errorf("%w: negative history window", ErrInvalidScope)
	}
	return nil
}

// a premium entitlement past its expiry is reported as expired
func effectiveStatus(ent models.Entitlement, premium bool) models.EntitlementStatus {
	if premium {
		return models.EntitlementPremium
	}
	if ent.Status == models.EntitlementPremium {
		return models.EntitlementExpired
	}
	if ent.Status == "" {
		return models.EntitlementFree
	}
	return ent.Status
}
