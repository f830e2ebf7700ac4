package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"CBOTLoader/internal/model"
)

// Three sessions in exchange time (gmtoffset -18000, New York winter).
// 2024-01-02 08:00 local, 2024-01-03 with a null close, 2024-01-04.
const chartBody = `{"chart":{"result":[{
  "meta":{"symbol":"ZC=F","gmtoffset":-18000},
  "timestamp":[1704200400,1704286800,1704373200],
  "indicators":{
    "quote":[{"open":[470.25,471.0,472.5],"high":[475.0,null,476.0],"low":[468.0,null,470.0],
              "close":[472.75,null,474.0],"volume":[120000,null,98000]}],
    "adjclose":[{"adjclose":[472.75,null,474.0]}]
  }}],"error":null}}`

func newTestFetcher(url string) *YahooFetcher {
	f := NewYahooFetcher(url, "", 5*time.Second, 2, quietLogger())
	f.RetryInterval = time.Millisecond
	return f
}

func TestYahooFetcher_ParsesChart(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, chartBody)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	bars, err := f.FetchBars(context.Background(), "ZC=F", testWindow)
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}

	if !strings.HasSuffix(gotPath, "/v8/finance/chart/ZC=F") {
		t.Errorf("unexpected path %q", gotPath)
	}
	// 2024-01-01 00:00 UTC and 2024-01-06 00:00 UTC (end + 1 day).
	for _, want := range []string{"period1=1704067200", "period2=1704499200", "interval=1d"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}

	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2 (null session skipped): %+v", len(bars), bars)
	}
	if bars[0].Date != date(2024, 1, 2) || bars[1].Date != date(2024, 1, 4) {
		t.Errorf("unexpected dates %s, %s", bars[0].Date, bars[1].Date)
	}
	if bars[0].Close.String() != "472.75" || bars[0].Volume != 120000 {
		t.Errorf("unexpected first bar %+v", bars[0])
	}
}

func TestYahooFetcher_WeeklyInterval(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{},"indicators":{"quote":[{}]}}],"error":null}}`)
	}))
	defer srv.Close()

	w := testWindow
	w.Frequency = model.Weekly
	bars, err := newTestFetcher(srv.URL).FetchBars(context.Background(), "ZC=F", w)
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("expected no bars, got %d", len(bars))
	}
	if !strings.Contains(gotQuery, "interval=1wk") {
		t.Errorf("query %q missing weekly interval", gotQuery)
	}
}

func TestYahooFetcher_UnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).FetchBars(context.Background(), "XX=F", testWindow)
	if err == nil || !strings.Contains(err.Error(), "symbol may be delisted") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestYahooFetcher_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, chartBody)
	}))
	defer srv.Close()

	bars, err := newTestFetcher(srv.URL).FetchBars(context.Background(), "ZC=F", testWindow)
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if len(bars) != 2 || hits.Load() != 3 {
		t.Errorf("bars=%d hits=%d, want 2 bars after 3 hits", len(bars), hits.Load())
	}
}

func TestYahooFetcher_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).FetchBars(context.Background(), "ZC=F", testWindow)
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("client error retried: %d hits", hits.Load())
	}
}

func TestYahooFetcher_GivesUpAfterMaxRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).FetchBars(context.Background(), "ZC=F", testWindow)
	if err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 1 attempt + 2 retries", hits.Load())
	}
}

func TestYahooFetcher_WeeklyBarsKeyedOnMonday(t *testing.T) {
	// Wednesday 2024-01-10, Friday 2024-01-12 (same week, live update) and Monday 2024-01-15.
	body := `{"chart":{"result":[{
  "meta":{"symbol":"ZC=F","gmtoffset":-18000},
  "timestamp":[1704895200,1705089600,1705323600],
  "indicators":{"quote":[{"open":[450,451,452],"high":[455,456,457],"low":[445,446,447],
    "close":[452.5,453.5,454.5],"volume":[100,200,300]}]}}],"error":null}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	w := model.DateWindow{Start: date(2024, 1, 1), End: date(2024, 1, 19), Frequency: model.Weekly}
	bars, err := newTestFetcher(srv.URL).FetchBars(context.Background(), "ZC=F", w)
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2: %+v", len(bars), bars)
	}
	if bars[0].Date != date(2024, 1, 8) || bars[1].Date != date(2024, 1, 15) {
		t.Errorf("unexpected dates %s, %s", bars[0].Date, bars[1].Date)
	}
	if bars[0].Close.String() != "453.5" {
		t.Errorf("expected the later entry of the week to win, got close %s", bars[0].Close)
	}
}

func TestYahooFetcher_ZeroRetriesMakesOneAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	f.MaxRetries = 0
	if _, err := f.FetchBars(context.Background(), "ZC=F", testWindow); err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}
