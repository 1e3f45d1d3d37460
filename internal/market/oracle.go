package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// OracleConfig tunes the USD reference price source.
type OracleConfig struct {
	// URL is the price endpoint, e.g. a CoinGecko simple-price URL for
	// solana/usd.
	URL string
	// AssetID selects the asset key inside the response body.
	AssetID string
	// TTL is how long a fetched price is served without hitting the endpoint
	// again.
	TTL time.Duration
	// StaleBound is how old a shared-cache price may be and still serve as a
	// fallback when the endpoint is down.
	StaleBound time.Duration
}

// HTTPOracle fetches the quote asset's USD price over HTTP, caching it
// in-process for the TTL and mirroring it into the shared cache so sibling
// processes and restarts reuse it. When the endpoint fails, a shared-cache
// price within StaleBound is served instead of aborting the cycle.
type HTTPOracle struct {
	cfg        OracleConfig
	httpClient *http.Client
	cache      domain.PriceCache // may be nil
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	last   float64
	lastAt time.Time
}

// NewHTTPOracle creates an HTTPOracle. cache may be nil to run without a
// shared fallback.
func NewHTTPOracle(cfg OracleConfig, cache domain.PriceCache, logger *slog.Logger) *HTTPOracle {
	if cfg.AssetID == "" {
		cfg.AssetID = "solana"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.StaleBound <= 0 {
		cfg.StaleBound = 10 * time.Minute
	}
	return &HTTPOracle{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
		logger:     logger.With(slog.String("component", "oracle")),
		now:        time.Now,
	}
}

var _ domain.PriceOracle = (*HTTPOracle)(nil)

// QuoteUSD returns the quote asset's USD price.
func (o *HTTPOracle) QuoteUSD(ctx context.Context) (float64, error) {
	o.mu.Lock()
	if o.lastAt.After(o.now().Add(-o.cfg.TTL)) && o.last > 0 {
		price := o.last
		o.mu.Unlock()
		return price, nil
	}
	o.mu.Unlock()

	price, err := o.fetch(ctx)
	if err == nil {
		ts := o.now()
		o.mu.Lock()
		o.last, o.lastAt = price, ts
		o.mu.Unlock()
		if o.cache != nil {
			if cerr := o.cache.SetQuoteUSD(ctx, price, ts); cerr != nil {
				o.logger.Warn("price cache write failed", slog.Any("error", cerr))
			}
		}
		return price, nil
	}

	// Endpoint down: a recent shared-cache price beats aborting the cycle.
	if o.cache != nil {
		cached, ts, cerr := o.cache.GetQuoteUSD(ctx)
		if cerr == nil && o.now().Sub(ts) <= o.cfg.StaleBound {
			o.logger.Warn("serving cached reference price",
				slog.Float64("price", cached),
				slog.Duration("age", o.now().Sub(ts).Round(time.Second)),
				slog.Any("fetch_error", err),
			)
			return cached, nil
		}
	}

	return 0, fmt.Errorf("market: oracle: %w", err)
}

func (o *HTTPOracle) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: HTTP %d: %s", domain.ErrNetwork, resp.StatusCode, string(body))
	}

	// CoinGecko simple-price shape: {"solana":{"usd":152.31}}
	var payload map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode price response: %w", err)
	}
	entry, ok := payload[o.cfg.AssetID]
	if !ok || entry.USD <= 0 {
		return 0, fmt.Errorf("no usable %s/usd price in response", o.cfg.AssetID)
	}
	return entry.USD, nil
}
