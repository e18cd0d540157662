package ledger

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fathom-mcp/fathom/internal/pricing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func entry(model, op string, total float64, estimated bool) Entry {
	return Entry{
		Timestamp:    time.Now().UTC(),
		Model:        model,
		Operation:    op,
		InputTokens:  100,
		OutputTokens: 200,
		Cost: pricing.Breakdown{
			InputCost:  pricing.Round(total / 3),
			OutputCost: pricing.Round(total * 2 / 3),
			TotalCost:  pricing.Round(total),
			Estimated:  estimated,
		},
	}
}

func TestSummary_Empty(t *testing.T) {
	l := New("", testLogger())
	s := l.Summary()
	if s.CallCount != 0 {
		t.Errorf("CallCount = %d, want 0", s.CallCount)
	}
	if s.TotalCost != 0 {
		t.Errorf("TotalCost = %v, want 0", s.TotalCost)
	}
	if time.Since(s.Since) > time.Minute {
		t.Errorf("empty ledger Since should be roughly now, got %v", s.Since)
	}
}

func TestSummary_Aggregation(t *testing.T) {
	l := New("", testLogger())
	l.Record(entry("gpt-5.1", "generate_text", 0.01, false))
	l.Record(entry("gpt-5.1", "web_search", 0.02, false))
	l.Record(entry("o3-deep-research", "deep_research", 1.5, true))

	s := l.Summary()
	if s.CallCount != 3 {
		t.Errorf("CallCount = %d, want 3", s.CallCount)
	}
	if math.Abs(s.TotalCost-1.53) > 1e-6 {
		t.Errorf("TotalCost = %v, want 1.53", s.TotalCost)
	}
	if math.Abs(s.EstimatedCost-1.5) > 1e-6 {
		t.Errorf("EstimatedCost = %v, want 1.5", s.EstimatedCost)
	}
	if math.Abs(s.ByModel["gpt-5.1"]-0.03) > 1e-6 {
		t.Errorf("ByModel[gpt-5.1] = %v, want 0.03", s.ByModel["gpt-5.1"])
	}
	if math.Abs(s.ByOperation["deep_research"]-1.5) > 1e-6 {
		t.Errorf("ByOperation[deep_research] = %v, want 1.5", s.ByOperation["deep_research"])
	}
}

func TestReset_ClearsMemoryOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usage.jsonl")

	l := New(path, testLogger())
	l.Record(entry("gpt-5.1", "generate_text", 0.01, false))
	l.Reset()

	if got := l.Summary().CallCount; got != 0 {
		t.Errorf("CallCount after Reset = %d, want 0", got)
	}

	// A restart reloads the durable mirror: Reset must not have truncated it.
	l2 := New(path, testLogger())
	if got := l2.Summary().CallCount; got != 1 {
		t.Errorf("CallCount after reload = %d, want 1", got)
	}
}

func TestReload_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usage.jsonl")

	l := New(path, testLogger())
	l.Record(entry("gpt-5.1", "generate_text", 0.01, false))
	l.Record(entry("gpt-5.1", "generate_text", 0.02, false))

	// Corrupt the middle of the file with a garbage line.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{not json}\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()
	l.Record(entry("gpt-5.1", "generate_text", 0.03, false))

	l2 := New(path, testLogger())
	if got := l2.Summary().CallCount; got != 3 {
		t.Errorf("CallCount after reload with corruption = %d, want 3", got)
	}
}

func TestRecord_ConcurrentAppend(t *testing.T) {
	l := New("", testLogger())

	var wg sync.WaitGroup
	const n = 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(entry("gpt-5.1", "generate_text", 0.001, false))
		}()
	}
	wg.Wait()

	if got := l.Summary().CallCount; got != n {
		t.Errorf("CallCount = %d, want %d", got, n)
	}
}

func TestRecord_PersistFailureDoesNotPanic(t *testing.T) {
	// Point the mirror at a path whose parent is a file, so appends fail.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(filepath.Join(blocker, "usage.jsonl"), testLogger())
	l.Record(entry("gpt-5.1", "generate_text", 0.01, false))

	if got := l.Summary().CallCount; got != 1 {
		t.Errorf("CallCount = %d, want 1 (in-memory record must survive persist failure)", got)
	}
}

func TestSummary_TotalMatchesSumOfEntries(t *testing.T) {
	l := New("", testLogger())
	var sum float64
	for i := 1; i <= 20; i++ {
		e := entry("gpt-5-mini", "generate_text", float64(i)*0.0000007, false)
		sum += e.Cost.TotalCost
		l.Record(e)
	}
	s := l.Summary()
	if math.Abs(s.TotalCost-pricing.Round(sum)) > 1e-6 {
		t.Errorf("TotalCost = %v, want %v", s.TotalCost, pricing.Round(sum))
	}
}
