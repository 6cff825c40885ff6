// Package currency implements port.CurrencyGateway against exchangerate-api.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/apperr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL   = "https://api.exchangerate-api.com"
	DefaultV6BaseURL = "https://v6.exchangerate-api.com"
	DefaultTimeout   = 5 * time.Second
	DefaultCacheTTL  = time.Hour
)

// Config holds gateway configuration. With an APIKey the v6 endpoint on
// V6BaseURL is used, otherwise the keyless v4 endpoint on BaseURL.
type Config struct {
	BaseURL   string
	V6BaseURL string
	APIKey    string
	Timeout   time.Duration
	CacheTTL  time.Duration
}

type rateTable struct {
	rates     map[string]float64
	fetchedAt time.Time
}

// Gateway fetches per-base rate tables and caches them for CacheTTL.
// Concurrent misses for the same base share one upstream request.
type Gateway struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]rateTable
	now   func() time.Time
}

// NewGateway creates a new currency gateway
func NewGateway(cfg Config, logger *zap.Logger) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.V6BaseURL == "" {
		cfg.V6BaseURL = DefaultV6BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.V6BaseURL = strings.TrimRight(cfg.V6BaseURL, "/")

	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		cache:  make(map[string]rateTable),
		now:    time.Now,
	}
}

// Rate returns how many units of to one unit of from buys
func (g *Gateway) Rate(ctx context.Context, from, to string) (float64, error) {
	from, to = normalize(from), normalize(to)
	if from == to {
		return 1, nil
	}

	table, err := g.table(ctx, from)
	if err != nil {
		return 0, err
	}

	rate, ok := table[to]
	if !ok || rate <= 0 {
		return 0, apperr.Dependency(nil, "no %s rate quoted for %s", to, from)
	}
	return rate, nil
}

// Rates returns base-relative rates for targets. Targets the provider does
// not quote are omitted.
func (g *Gateway) Rates(ctx context.Context, base string, targets []string) (map[string]float64, error) {
	base = normalize(base)

	table, err := g.table(ctx, base)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	if len(targets) == 0 {
		for code, rate := range table {
			out[code] = rate
		}
		return out, nil
	}
	for _, code := range targets {
		code = normalize(code)
		if code == base {
			out[code] = 1
			continue
		}
		if rate, ok := table[code]; ok {
			out[code] = rate
		}
	}
	return out, nil
}

func (g *Gateway) table(ctx context.Context, base string) (map[string]float64, error) {
	g.mu.RLock()
	cached, ok := g.cache[base]
	g.mu.RUnlock()
	if ok && g.now().Sub(cached.fetchedAt) < g.cfg.CacheTTL {
		return cached.rates, nil
	}

	ch := g.group.DoChan(base, func() (interface{}, error) {
		// detached from any single caller; bounded by the client timeout
		rates, err := g.fetch(context.Background(), base)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.cache[base] = rateTable{rates: rates, fetchedAt: g.now()}
		g.mu.Unlock()
		return rates, nil
	})

	select {
	case <-ctx.Done():
		return nil, apperr.Dependency(ctx.Err(), "exchange rate lookup for %s cancelled", base)
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]float64), nil
	}
}

// latestResponse covers both the v4 (rates) and v6 (conversion_rates) shapes
type latestResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	Base            string             `json:"base"`
	BaseCode        string             `json:"base_code"`
	Rates           map[string]float64 `json:"rates"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

func (g *Gateway) fetch(ctx context.Context, base string) (map[string]float64, error) {
	url := fmt.Sprintf("%s/v4/latest/%s", g.cfg.BaseURL, base)
	if g.cfg.APIKey != "" {
		url = fmt.Sprintf("%s/v6/%s/latest/%s", g.cfg.V6BaseURL, g.cfg.APIKey, base)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to build exchange rate request")
	}
	req.Header.Set("Accept", "application/json")

	start := g.now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("Exchange rate request failed", zap.String("base", base), zap.Error(err))
		return nil, apperr.Dependency(err, "exchange rate request for %s failed", base)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("Exchange rate provider returned error status",
			zap.String("base", base),
			zap.Int("status", resp.StatusCode))
		return nil, apperr.Dependency(fmt.Errorf("status %d", resp.StatusCode), "exchange rate provider rejected %s", base)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperr.Dependency(err, "failed to decode exchange rates for %s", base)
	}
	if body.Result == "error" {
		return nil, apperr.Dependency(errors.New(body.ErrorType), "exchange rate provider rejected %s", base)
	}

	rates := body.ConversionRates
	if rates == nil {
		rates = body.Rates
	}
	if len(rates) == 0 {
		return nil, apperr.Dependency(nil, "exchange rate provider returned no rates for %s", base)
	}

	g.logger.Debug("Fetched exchange rates",
		zap.String("base", base),
		zap.Int("count", len(rates)),
		zap.Duration("elapsed", g.now().Sub(start)))

	return rates, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var _ port.CurrencyGateway = (*Gateway)(nil)
