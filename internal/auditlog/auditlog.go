// Package auditlog writes daily JSON-lines files of pass summaries and of
// every prompt sent to the model with its response.
package auditlog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PassEntry summarises one pass.
type PassEntry struct {
	Time        string   `json:"time"`
	RunID       string   `json:"run_id"`
	Mode        string   `json:"mode"`
	Requested   int      `json:"requested"`
	Significant int      `json:"significant"`
	Skipped     []string `json:"skipped,omitempty"`
	Failed      []string `json:"failed,omitempty"`
	Published   int      `json:"published"`
	Error       string   `json:"error,omitempty"`
}

// ExchangeEntry records one model call.
type ExchangeEntry struct {
	Time         string   `json:"time"`
	RunID        string   `json:"run_id"`
	Symbols      []string `json:"symbols"`
	PromptTokens int      `json:"prompt_tokens"`
	Prompt       string   `json:"prompt"`
	Suggestion   string   `json:"suggestion"`
	Response     string   `json:"response"`
	Unmatched    []string `json:"unmatched,omitempty"`
}

// Log appends entries under dir: passes to <date>.txt and model exchanges
// to exchanges/<date>.txt.
type Log struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

func New(dir string) *Log {
	if dir == "" {
		dir = "logs"
	}
	return &Log{dir: dir, now: func() time.Time { return time.Now().UTC() }}
}

func (l *Log) Dir() string { return l.dir }

func (l *Log) dailyFilepath(t time.Time) string {
	return filepath.Join(l.dir, t.Format("2006-01-02")+".txt")
}

func (l *Log) exchangesFilepath(t time.Time) string {
	return filepath.Join(l.dir, "exchanges", t.Format("2006-01-02")+".txt")
}

func (l *Log) AppendPass(e PassEntry) error {
	now := l.now()
	e.Time = now.Format("2006-01-02 15:04:05")
	return l.appendLine(l.dailyFilepath(now), e)
}

func (l *Log) AppendExchange(e ExchangeEntry) error {
	now := l.now()
	e.Time = now.Format("2006-01-02 15:04:05")
	return l.appendLine(l.exchangesFilepath(now), e)
}

func (l *Log) appendLine(p string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips .txt files last modified more than retentionDays ago
// and removes the originals. Zero or negative retention disables it.
func (l *Log) CompressOlder(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := l.now().AddDate(0, 0, -retentionDays)

	l.mu.Lock()
	defer l.mu.Unlock()

	compressed := 0
	err := filepath.WalkDir(l.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// already compressed by an earlier run
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			return nil
		}
		_ = os.Remove(p)
		compressed++
		return nil
	})
	return compressed, err
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
