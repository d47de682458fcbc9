// Package market polls a dexscreener-style pairs API as an alternate
// ingestion path, producing price and liquidity snapshots for tracked mints
// so exits still fire when the trade feed is quiet.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"pump-sniper/internal/domain"
)

// Poller fetches pair snapshots for individual token mints. Requests are
// rate limited to stay inside the public API quota.
type Poller struct {
	http    *resty.Client
	baseURL string
	limiter *rate.Limiter
}

// NewPoller creates a Poller against the given tokens API base URL,
// allowing at most rps requests per second.
func NewPoller(baseURL string, rps float64) *Poller {
	if rps <= 0 {
		rps = 1
	}
	return &Poller{
		http:    resty.New().SetHeader("Accept", "application/json"),
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// pairsResponse mirrors the dexscreener token pairs payload. Numeric prices
// arrive as strings.
type pairsResponse struct {
	Pairs []struct {
		PairAddress string `json:"pairAddress"`
		DexID       string `json:"dexId"`
		PriceNative string `json:"priceNative"`
		BaseToken   struct {
			Address string `json:"address"`
		} `json:"baseToken"`
		Txns struct {
			M5 struct {
				Buys  int `json:"buys"`
				Sells int `json:"sells"`
			} `json:"m5"`
		} `json:"txns"`
		Volume struct {
			M5 float64 `json:"m5"`
		} `json:"volume"`
		PriceChange struct {
			M5 float64 `json:"m5"`
		} `json:"priceChange"`
		Liquidity struct {
			Quote float64 `json:"quote"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

// Fetch returns the snapshots for one mint. An empty slice means the API
// knows no pairs for the mint yet.
func (p *Poller) Fetch(ctx context.Context, mint string) ([]*domain.PairSnapshot, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.http.R().SetContext(ctx).Get(p.baseURL + "/" + mint)
	if err != nil {
		return nil, fmt.Errorf("fetch pairs for %s: %w", mint, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("pairs API status %d for %s", resp.StatusCode(), mint)
	}

	var parsed pairsResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("parse pairs response: %w", err)
	}

	snapshots := make([]*domain.PairSnapshot, 0, len(parsed.Pairs))
	for _, pair := range parsed.Pairs {
		price, err := strconv.ParseFloat(pair.PriceNative, 64)
		if err != nil || price <= 0 {
			continue
		}
		snapshots = append(snapshots, &domain.PairSnapshot{
			Mint:           pair.BaseToken.Address,
			PairAddress:    pair.PairAddress,
			DexID:          pair.DexID,
			PriceSOL:       price,
			PriceChange5m:  pair.PriceChange.M5,
			Volume5mSOL:    pair.Volume.M5,
			Buys5m:         pair.Txns.M5.Buys,
			Sells5m:        pair.Txns.M5.Sells,
			LiquidityQuote: pair.Liquidity.Quote,
		})
	}
	return snapshots, nil
}

// Best returns the snapshot with the deepest quote liquidity, or nil.
func Best(snapshots []*domain.PairSnapshot) *domain.PairSnapshot {
	var best *domain.PairSnapshot
	for _, s := range snapshots {
		if best == nil || s.LiquidityQuote > best.LiquidityQuote {
			best = s
		}
	}
	return best
}
