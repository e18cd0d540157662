// Package ledger records every billable operation as an immutable entry and
// serves aggregate cost summaries.
//
// The ledger is process-lifetime, append-only state with an optional durable
// JSONL mirror. Persistence is strictly best-effort: a disk failure is logged
// and discarded, never surfaced to the caller whose operation succeeded. On
// construction an existing mirror is reloaded line by line; malformed lines
// are skipped.
//
// All methods are safe for concurrent use.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fathom-mcp/fathom/internal/pricing"
)

// Entry is one immutable usage record. Appended, never mutated.
type Entry struct {
	// Timestamp is when the operation reached its terminal state.
	Timestamp time.Time `json:"timestamp"`

	// Model is the upstream model identifier that was billed.
	Model string `json:"model"`

	// Operation is the tool kind: "generate_text", "web_search", or
	// "deep_research".
	Operation string `json:"operation"`

	// InputTokens and OutputTokens are the reported token counts. Zero when
	// the remote omitted usage.
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	// Cost is the computed breakdown. Cost.Estimated is forced true when no
	// usage was reported, since the figure is then a pure guess.
	Cost pricing.Breakdown `json:"cost"`

	// Failed marks an operational entry written for a hard failure.
	Failed bool `json:"failed,omitempty"`

	// Error is the single-line failure description for Failed entries.
	Error string `json:"error,omitempty"`
}

// Summary is the aggregate view returned by [Ledger.Summary]. All monetary
// values are rounded at the same 1e-6 precision as individual entries.
type Summary struct {
	// TotalCost is the sum of every entry's total cost.
	TotalCost float64 `json:"total_cost"`

	// EstimatedCost is the portion of TotalCost from entries whose cost was
	// estimated rather than priced from the table.
	EstimatedCost float64 `json:"estimated_cost"`

	// ByModel sums total cost per model identifier.
	ByModel map[string]float64 `json:"by_model"`

	// ByOperation sums total cost per operation kind.
	ByOperation map[string]float64 `json:"by_operation"`

	// CallCount is the number of recorded entries.
	CallCount int `json:"call_count"`

	// Since is the timestamp of the first recorded entry, or the time the
	// summary was taken when the ledger is empty.
	Since time.Time `json:"since"`
}

// Ledger is the append-only usage record store.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry

	// path is the JSONL mirror file, or "" for memory-only operation.
	path   string
	logger *slog.Logger
}

// New constructs a Ledger. When path is non-empty, any existing mirror file
// is reloaded; reload failures are non-fatal and leave the ledger empty.
func New(path string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{path: path, logger: logger}

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			logger.Warn("ledger: cannot create log directory, running memory-only", "path", path, "err", err)
			l.path = ""
			return l
		}
		l.reload()
	}
	return l
}

// Record appends an entry in memory and mirrors it to disk when persistence
// is configured. The caller's operation never fails because of disk I/O: a
// persist error is logged and discarded here.
func (l *Ledger) Record(e Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	if l.path == "" {
		return
	}
	if err := l.persist(e); err != nil {
		l.logger.Warn("ledger: persist failed, entry kept in memory only", "err", err)
	}
}

// Summary aggregates all recorded entries.
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{
		ByModel:     make(map[string]float64),
		ByOperation: make(map[string]float64),
		CallCount:   len(l.entries),
		Since:       time.Now().UTC(),
	}
	if len(l.entries) > 0 {
		s.Since = l.entries[0].Timestamp
	}

	for _, e := range l.entries {
		s.TotalCost += e.Cost.TotalCost
		if e.Cost.Estimated {
			s.EstimatedCost += e.Cost.TotalCost
		}
		s.ByModel[e.Model] += e.Cost.TotalCost
		s.ByOperation[e.Operation] += e.Cost.TotalCost
	}

	s.TotalCost = pricing.Round(s.TotalCost)
	s.EstimatedCost = pricing.Round(s.EstimatedCost)
	for k, v := range s.ByModel {
		s.ByModel[k] = pricing.Round(v)
	}
	for k, v := range s.ByOperation {
		s.ByOperation[k] = pricing.Round(v)
	}
	return s
}

// Reset clears the in-memory entries. The durable mirror is never truncated;
// it is an append-only audit trail.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// persist appends one serialized entry to the mirror file. Returning the
// error keeps the best-effort contract visible at the call site.
func (l *Ledger) persist(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("ledger: marshal entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open %s: %w", l.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("ledger: append to %s: %w", l.path, err)
	}
	return nil
}

// reload parses the mirror file line by line. A malformed line is skipped,
// not fatal; a missing file leaves the ledger empty.
func (l *Ledger) reload() {
	f, err := os.Open(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("ledger: cannot reload mirror, starting empty", "path", l.path, "err", err)
		}
		return
	}
	defer f.Close()

	var loaded, skipped int
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			skipped++
			continue
		}
		l.entries = append(l.entries, e)
		loaded++
	}
	if err := sc.Err(); err != nil {
		l.logger.Warn("ledger: mirror read aborted", "path", l.path, "err", err)
	}

	l.logger.Debug("ledger: reloaded mirror", "path", l.path, "entries", loaded, "skipped", skipped)
}
