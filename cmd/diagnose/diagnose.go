package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"rust-trends/internal/observability/logging"
	"rust-trends/internal/usecase/announce"
	"rust-trends/internal/usecase/selection"
)

// Diagnostic statuses.
const (
	StatusOK         = "OK"
	StatusEmpty      = "EMPTY"
	StatusTimeout    = "TIMEOUT"
	StatusFetchError = "FETCH_ERROR"
	StatusStoreError = "STORE_ERROR"
)

// sampleSize is how many eligible identities a report lists per source.
const sampleSize = 5

// SourceDiagnostic is the result of checking one trend source.
type SourceDiagnostic struct {
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Candidates   int      `json:"candidates"`
	Eligible     int      `json:"eligible"`
	Suppressed   int      `json:"suppressed"`
	ResponseTime int64    `json:"response_time_ms"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Sample       []string `json:"sample,omitempty"`
}

// Healthy reports whether the source returned candidates without errors.
func (d SourceDiagnostic) Healthy() bool {
	return d.Status == StatusOK
}

// noLedger treats every identity as never announced.
type noLedger struct{}

var _ selection.Ledger = noLedger{}

func (noLedger) WasAnnouncedRecently(context.Context, string, int, time.Time) (bool, error) {
	return false, nil
}

// diagnoseSource fetches from src and runs the candidates through selection
// against ledger. It never publishes or records.
func diagnoseSource(ctx context.Context, src announce.TrendSource, ledger selection.Ledger, windowDays int, now time.Time, timeout time.Duration) SourceDiagnostic {
	diag := SourceDiagnostic{Name: src.Name()}
	if ledger == nil {
		ledger = noLedger{}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	candidates, err := src.Fetch(fetchCtx)
	diag.ResponseTime = time.Since(start).Milliseconds()
	if err != nil {
		diag.Status = StatusFetchError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			diag.Status = StatusTimeout
		}
		diag.ErrorMessage = logging.SanitizeError(err)
		return diag
	}

	diag.Candidates = len(candidates)
	if len(candidates) == 0 {
		diag.Status = StatusEmpty
		return diag
	}

	res, err := selection.Select(ctx, candidates, ledger, windowDays, now)
	if err != nil {
		diag.Status = StatusStoreError
		diag.ErrorMessage = logging.SanitizeError(err)
		return diag
	}

	diag.Status = StatusOK
	diag.Eligible = len(res.Eligible)
	diag.Suppressed = len(res.Suppressed)
	for i, c := range res.Eligible {
		if i == sampleSize {
			break
		}
		diag.Sample = append(diag.Sample, c.Identity)
	}
	return diag
}

// diagnoseAll checks every source in order.
func diagnoseAll(ctx context.Context, sources []announce.TrendSource, ledger selection.Ledger, windowDays int, now time.Time, timeout time.Duration) []SourceDiagnostic {
	out := make([]SourceDiagnostic, 0, len(sources))
	for _, src := range sources {
		out = append(out, diagnoseSource(ctx, src, ledger, windowDays, now, timeout))
	}
	return out
}

// writeReport renders a human-readable report.
func writeReport(w io.Writer, diagnostics []SourceDiagnostic, windowDays int, generated time.Time) error {
	var werr error
	writef := func(format string, args ...interface{}) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(w, format, args...)
	}

	statusCount := make(map[string]int)
	healthy := 0
	for _, d := range diagnostics {
		statusCount[d.Status]++
		if d.Healthy() {
			healthy++
		}
	}

	writef("===============================================\n")
	writef("Trend Source Diagnostic Report\n")
	writef("Generated: %s\n", generated.UTC().Format(time.RFC3339))
	writef("Window: %d days\n", windowDays)
	writef("Total Sources: %d\n", len(diagnostics))
	writef("===============================================\n\n")

	writef("SUMMARY:\n")
	writef("  Working: %d\n", healthy)
	writef("  Broken: %d\n", len(diagnostics)-healthy)
	writef("\nSTATUS BREAKDOWN:\n")
	statuses := make([]string, 0, len(statusCount))
	for status := range statusCount {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		writef("  %s: %d\n", status, statusCount[status])
	}

	writef("\nDETAILED RESULTS:\n")
	writef("-------------------------------------------\n")
	for _, d := range diagnostics {
		writef("Name: %s\n", d.Name)
		writef("  Status: %s | Response: %dms\n", d.Status, d.ResponseTime)
		if d.ErrorMessage != "" {
			writef("  Error: %s\n", d.ErrorMessage)
		}
		if d.Candidates > 0 {
			writef("  Candidates: %d | Eligible: %d | Suppressed: %d\n", d.Candidates, d.Eligible, d.Suppressed)
		}
		for _, id := range d.Sample {
			writef("    next: %s\n", id)
		}
		writef("\n")
	}
	return werr
}

// writeJSONReport renders the diagnostics as indented JSON.
func writeJSONReport(w io.Writer, diagnostics []SourceDiagnostic) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(diagnostics)
}

// anyHealthy reports whether at least one source works, which is all a run needs.
func anyHealthy(diagnostics []SourceDiagnostic) bool {
	for _, d := range diagnostics {
		if d.Healthy() {
			return true
		}
	}
	return false
}
