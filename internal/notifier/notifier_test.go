package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 mins 0 s 0 ms"},
		{1500 * time.Millisecond, "0 mins 1 s 500 ms"},
		{2*time.Minute + 3*time.Second + 45*time.Millisecond, "2 mins 3 s 45 ms"},
		{75 * time.Minute, "75 mins 0 s 0 ms"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.d); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatRunSummary(t *testing.T) {
	msg := FormatRunSummary(RunSummary{
		Window:      "2024-01-01..2024-01-05 (d)",
		Destination: "FRED.Raw.CBOT.Daily_Price_Data",
		Outcome:     "loaded",
		Mode:        "append",
		Missing:     4,
		Fetched:     40,
		Loaded:      38,
		Elapsed:     2 * time.Second,
	})
	for _, want := range []string{"✅", "FRED.Raw.CBOT.Daily_Price_Data", "Missing dates: 4", "loaded: 38", "0 mins 2 s 0 ms"} {
		if !strings.Contains(msg, want) {
			t.Errorf("summary missing %q:\n%s", want, msg)
		}
	}

	failed := FormatRunSummary(RunSummary{Outcome: "failed", Err: errors.New("insert <x>")})
	if !strings.Contains(failed, "❌") || !strings.Contains(failed, "insert &lt;x&gt;") {
		t.Errorf("failure summary not escaped:\n%s", failed)
	}
}

func TestTelegramSend(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "", nil)
	n.APIBase = srv.URL
	if err := n.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %s", path)
	}
	if got["chat_id"] != "42" || got["text"] != "hello" || got["parse_mode"] != "HTML" {
		t.Errorf("payload = %v", got)
	}
}

func TestTelegramSendWithRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "", nil)
	n.APIBase = srv.URL
	if err := n.SendWithRetry(context.Background(), "hello", 2); err != nil {
		t.Fatalf("SendWithRetry: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}
