package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"CBOTLoader/internal/model"
)

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL       string
	Client        *http.Client
	MaxRetries    int
	RetryInterval time.Duration
	log           *slog.Logger
}

// NewYahooFetcher creates a fetcher with optional proxy support.
func NewYahooFetcher(baseURL, proxyURL string, timeout time.Duration, maxRetries int, logger *slog.Logger) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YahooFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		MaxRetries:    maxRetries,
		RetryInterval: 500 * time.Millisecond,
		log:           logger.With("fetcher", "yahoo"),
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure from the chart API. Quote arrays
// carry nulls for sessions without trades.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchBars requests [start, end] inclusive; the API's period2 is
// exclusive so the request runs to end+1 day.
func (f *YahooFetcher) FetchBars(ctx context.Context, ticker string, w model.DateWindow) ([]model.Bar, error) {
	if !w.Frequency.Valid() {
		return nil, fmt.Errorf("%w: got %q", model.ErrInvalidFrequency, string(w.Frequency))
	}
	q := url.Values{}
	q.Set("period1", fmt.Sprint(w.Start.In(time.UTC).Unix()))
	q.Set("period2", fmt.Sprint(w.End.AddDays(1).In(time.UTC).Unix()))
	q.Set("interval", w.Frequency.Interval())
	q.Set("events", "history")
	q.Set("includeAdjustedClose", "true")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(ticker), q.Encode())

	body, err := f.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no quote block for %s", ticker)
	}
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	byDate := make(map[civil.Date]model.Bar, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := at(quote.Close, i)
		if c == nil {
			continue // no session (holiday or halted contract)
		}
		// Shift into exchange local time so the bar keeps its trade date.
		d := civil.DateOf(time.Unix(ts+result.Meta.GMTOffset, 0).UTC())
		if w.Frequency == model.Weekly {
			// Weekly bars are keyed on the Monday of their week; a live week
			// can be reported twice and the later entry wins.
			d = model.WeekStart(d)
		}
		if d.After(w.End) || (w.Frequency == model.Daily && d.Before(w.Start)) {
			continue
		}
		bar := model.Bar{
			Date:     d,
			Open:     toDecimal(at(quote.Open, i)),
			High:     toDecimal(at(quote.High, i)),
			Low:      toDecimal(at(quote.Low, i)),
			Close:    toDecimal(c),
			AdjClose: toDecimal(c),
		}
		if a := at(adj, i); a != nil {
			bar.AdjClose = toDecimal(a)
		}
		if v := at(quote.Volume, i); v != nil {
			bar.Volume = int64(*v)
		}
		// The provider can repeat the live bar; the later entry wins.
		byDate[d] = bar
	}

	bars := make([]model.Bar, 0, len(byDate))
	for _, b := range byDate {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// get performs the request with exponential backoff. 4xx responses other
// than 429 are not retried.
func (f *YahooFetcher) get(ctx context.Context, u string) ([]byte, error) {
	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")
		req.Header.Set("Accept", "application/json")

		resp, err := f.Client.Do(req)
		if err != nil {
			return fmt.Errorf("yahoo fetch: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("yahoo read body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, truncate(b, 200))
			if resp.StatusCode == http.StatusNotFound {
				// The API reports unknown symbols as 404 with a JSON error body.
				body = b
				return nil
			}
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}
		body = b
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.RetryInterval
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(f.MaxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		f.log.Warn("yahoo request failed, retrying", "err", err, "wait", wait)
	}
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return body, nil
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

func toDecimal(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
