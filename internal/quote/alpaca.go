package quote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"papertrade/internal/domain"
	"papertrade/internal/util"
)

var _ Oracle = (*AlpacaOracle)(nil)

// AlpacaOracle prices symbols against the Alpaca market-data API. All calls
// go through a shared rate limiter and a bounded HTTP client, so a slow or
// throttled upstream cannot wedge the evaluation loop.
type AlpacaOracle struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewAlpacaOracle creates an oracle with the given credentials. dataURL
// overrides the default market-data endpoint when non-empty. timeout bounds
// each HTTP request; ratePerMin caps outbound request rate.
func NewAlpacaOracle(apiKey, apiSecret, dataURL string, timeout time.Duration, ratePerMin int) *AlpacaOracle {
	opts := marketdata.ClientOpts{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	return &AlpacaOracle{
		client:  marketdata.NewClient(opts),
		limiter: util.NewRateLimiter(ratePerMin),
		log:     slog.Default().With("component", "alpaca-oracle"),
	}
}

// Price returns the latest trade price for a symbol. When the latest-trade
// endpoint has nothing (thinly traded symbols outside market hours), it
// falls back to the most recent daily close.
func (o *AlpacaOracle) Price(ctx context.Context, symbol string) (float64, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	trade, err := o.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err == nil && trade != nil && trade.Price > 0 {
		return trade.Price, nil
	}
	if err != nil {
		o.log.Debug("latest trade lookup failed, falling back to daily bar",
			"symbol", symbol, "error", err)
	}

	closePrice, barErr := o.latestDailyClose(ctx, symbol)
	if barErr != nil {
		return 0, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	return closePrice, nil
}

// Quote returns the current price with previous close and day change, from a
// single snapshot call.
func (o *AlpacaOracle) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	snap, err := o.client.GetSnapshot(symbol, marketdata.GetSnapshotRequest{})
	if err != nil || snap == nil {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}

	q := &domain.Quote{Symbol: symbol}

	switch {
	case snap.LatestTrade != nil && snap.LatestTrade.Price > 0:
		q.Price = snap.LatestTrade.Price
	case snap.DailyBar != nil && snap.DailyBar.Close > 0:
		q.Price = snap.DailyBar.Close
	default:
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}

	if snap.PrevDailyBar != nil {
		q.PrevClose = snap.PrevDailyBar.Close
	}
	if q.PrevClose > 0 {
		q.Change = q.Price - q.PrevClose
		q.ChangePercent = q.Change / q.PrevClose * 100
	}
	return q, nil
}

// History returns up to days trailing daily bars for a symbol, oldest first.
func (o *AlpacaOracle) History(ctx context.Context, symbol string, days int) ([]domain.Bar, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	end := time.Now()
	// Calendar days overshoot trading days, so widen the window and trim.
	start := end.AddDate(0, 0, -days*2)

	bars, err := o.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching daily bars for %s: %w", symbol, err)
	}
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}

	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, domain.Bar{
			Symbol:    symbol,
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    int64(b.Volume),
		})
	}
	return out, nil
}

// News returns the most recent headlines for a symbol, newest first.
func (o *AlpacaOracle) News(ctx context.Context, symbol string, limit int) ([]domain.Headline, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	items, err := o.client.GetNews(marketdata.GetNewsRequest{
		Symbols:    []string{symbol},
		TotalLimit: limit,
		Sort:       marketdata.SortDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching news for %s: %w", symbol, err)
	}

	headlines := make([]domain.Headline, 0, len(items))
	for _, n := range items {
		headlines = append(headlines, domain.Headline{
			Time:   n.CreatedAt,
			Source: n.Author,
			Title:  n.Headline,
			URL:    n.URL,
		})
	}
	return headlines, nil
}

func (o *AlpacaOracle) latestDailyClose(ctx context.Context, symbol string) (float64, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	end := time.Now()
	bars, err := o.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     end.AddDate(0, 0, -7),
		End:       end,
	})
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no daily bars for %s", symbol)
	}
	return bars[len(bars)-1].Close, nil
}
