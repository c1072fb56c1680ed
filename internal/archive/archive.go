// Package archive keeps a dated on-disk copy of each pass: the analysis
// records as parquet and a daily manifest of published messages with their
// charts.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/types"
)

const manifestName = "history.json"

// ManifestEntry is one published message in the daily manifest.
type ManifestEntry struct {
	Symbol   string `json:"symbol"`
	Analysis string `json:"analysis"`
	Img      string `json:"img"`
}

type Archive struct {
	dir string
	log *logger.Logger
}

func New(dir string, log *logger.Logger) *Archive {
	return &Archive{dir: dir, log: log}
}

func (a *Archive) dayDir(day time.Time) string {
	return filepath.Join(a.dir, day.UTC().Format("2006-01-02"))
}

// WriteRecords stores the records of one pass as
// <dir>/<date>/analysis-<runID>.parquet.
func (a *Archive) WriteRecords(ctx context.Context, runID string, at time.Time, records []types.AnalysisRecord) (string, error) {
	dir := a.dayDir(at)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("analysis-%s.parquet", runID))
	if err := parquet.WriteFile(path, records); err != nil {
		return "", fmt.Errorf("write parquet: %w", err)
	}
	a.log.Info(ctx, "Analysis records archived", "path", path, "records", len(records))
	return path, nil
}

// ReadRecords loads a parquet file written by WriteRecords.
func ReadRecords(path string) ([]types.AnalysisRecord, error) {
	return parquet.ReadFile[types.AnalysisRecord](path)
}

// SyncDay copies the charts of entries published on day into the day's
// folder and rewrites its manifest. Entries without a readable chart or
// whose chart belongs to another day are left out. It returns the number of
// manifest entries.
func (a *Archive) SyncDay(ctx context.Context, day time.Time, entries []types.HistoryEntry) (int, error) {
	dir := a.dayDir(day)
	dayName := filepath.Base(dir)

	var manifest []ManifestEntry
	for _, e := range entries {
		if e.ChartPath == "" {
			continue
		}
		if filepath.Base(filepath.Dir(e.ChartPath)) != dayName {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create archive dir: %w", err)
		}
		name := filepath.Base(e.ChartPath)
		if err := copyFile(e.ChartPath, filepath.Join(dir, name)); err != nil {
			a.log.Warn(ctx, "Skipping archive entry, image not found", "symbol", e.Symbol, "img", e.ChartPath, "error", err)
			continue
		}
		manifest = append(manifest, ManifestEntry{
			Symbol:   e.Symbol,
			Analysis: e.Analysis,
			Img:      dayName + "/" + name,
		})
	}

	if len(manifest) == 0 {
		a.log.Info(ctx, "No records to archive", "day", dayName)
		return 0, nil
	}

	if err := writeJSON(filepath.Join(dir, manifestName), manifest); err != nil {
		return 0, err
	}
	a.log.Info(ctx, "Manifest saved", "path", filepath.Join(dir, manifestName), "entries", len(manifest))
	return len(manifest), nil
}

// ReadManifest loads the manifest for day.
func (a *Archive) ReadManifest(day time.Time) ([]ManifestEntry, error) {
	b, err := os.ReadFile(filepath.Join(a.dayDir(day), manifestName))
	if err != nil {
		return nil, err
	}
	var out []ManifestEntry
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return out, nil
}

func copyFile(src, dst string) error {
	if abs(src) == abs(dst) {
		_, err := os.Stat(src)
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func abs(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}

// writeJSON replaces path atomically.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
