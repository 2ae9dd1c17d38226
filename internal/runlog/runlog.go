package runlog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trade-ledger/internal/types"
)

// Entry is one line of the run journal.
type Entry struct {
	Time       string   `json:"time"`
	RunID      string   `json:"run_id"`
	Source     string   `json:"source"`
	Raw        int      `json:"raw"`
	Admitted   int      `json:"admitted"`
	Dropped    int      `json:"dropped"`
	Matched    int      `json:"matched"`
	OpenLots   int      `json:"open_lots"`
	Warnings   int      `json:"warnings"`
	NetPnL     string   `json:"net_pnl"`
	NetLiq     string   `json:"net_liquidation"`
	DurationMS int64    `json:"duration_ms"`
	Reports    []string `json:"reports,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// FromLedger fills the counters of an entry from a finished run.
func FromLedger(runID, source string, l *types.Ledger) Entry {
	return Entry{
		RunID:    runID,
		Source:   source,
		Raw:      l.Stats.RawRecords,
		Admitted: l.Stats.Admitted,
		Dropped:  l.Stats.Dropped,
		Matched:  l.Stats.MatchedTrades,
		OpenLots: l.Stats.OpenLots,
		Warnings: len(l.Warnings),
		NetPnL:   l.Stats.NetPnL.String(),
		NetLiq:   l.Stats.NetLiquidation.String(),
	}
}

// Journal appends entries to one JSON-lines file per UTC day under Dir.
type Journal struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

func New(dir string) *Journal {
	return &Journal{dir: dir, now: time.Now}
}

func (j *Journal) dailyFilepath(t time.Time) string {
	return filepath.Join(j.dir, t.UTC().Format("2006-01-02")+".txt")
}

// Append stamps e with the current time and writes it as one line.
func (j *Journal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now().UTC()
	e.Time = now.Format(time.RFC3339)
	p := j.dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips day files last modified more than retentionDays ago and
// removes the plain copies. A non-positive retention keeps everything as is.
func (j *Journal) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	cutoff := j.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		// Lines appended after an earlier pass become a new gzip member;
		// readers see one concatenated stream.
		if err := gzipFile(p, p+".gz"); err != nil {
			return fmt.Errorf("compress %s: %w", p, err)
		}
		return os.Remove(p)
	})
}

// gzipFile appends src to dst as one gzip member, creating dst if needed.
func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
