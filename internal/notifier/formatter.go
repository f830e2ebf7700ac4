package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// RunSummary describes one finished pipeline run.
type RunSummary struct {
	RunID       string
	Window      string
	Destination string
	Outcome     string
	Mode        string
	Missing     int
	Fetched     int
	Loaded      int
	Elapsed     time.Duration
	Err         error
}

// FormatRunSummary formats a run summary into a Telegram message.
func FormatRunSummary(s RunSummary) string {
	var b strings.Builder

	icon := "✅"
	if s.Err != nil {
		icon = "❌"
	}
	b.WriteString(fmt.Sprintf("%s <b>CBOT price load</b> | %s\n\n", icon, html.EscapeString(s.Window)))
	b.WriteString(fmt.Sprintf("Outcome: %s\n", html.EscapeString(s.Outcome)))
	b.WriteString(fmt.Sprintf("Table: %s\n", html.EscapeString(s.Destination)))
	if s.Mode != "" {
		b.WriteString(fmt.Sprintf("Mode: %s\n", s.Mode))
	}
	b.WriteString(fmt.Sprintf("Missing dates: %d\n", s.Missing))
	b.WriteString(fmt.Sprintf("Rows fetched: %d | loaded: %d\n", s.Fetched, s.Loaded))
	b.WriteString(fmt.Sprintf("Runtime: %s\n", FormatElapsed(s.Elapsed)))
	if s.Err != nil {
		b.WriteString(fmt.Sprintf("\nError: %s\n", html.EscapeString(s.Err.Error())))
	}
	if s.RunID != "" {
		b.WriteString(fmt.Sprintf("\n<code>%s</code>", html.EscapeString(s.RunID)))
	}
	return b.String()
}

// FormatElapsed renders a duration as "X mins Y s Z ms".
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	mins := int(d / time.Minute)
	secs := int((d % time.Minute) / time.Second)
	ms := int((d % time.Second) / time.Millisecond)
	return fmt.Sprintf("%d mins %d s %d ms", mins, secs, ms)
}
