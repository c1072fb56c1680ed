package auditlog

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

type modeRow struct {
	Mode        string
	Passes      int
	Aborted     int
	Requested   int
	Significant int
	Skipped     int
	Failed      int
	Published   int
}

func (l *Log) summaryFilepath(t time.Time) string {
	return filepath.Join(l.dir, "summary", t.Format("2006-01-02")+".csv")
}

// SummarizeDay rolls the pass entries of day up per mode into
// <dir>/summary/<date>.csv with a trailing TOTAL row. It returns "" when the
// day has no passes.
func (l *Log) SummarizeDay(day time.Time) (string, error) {
	inPath := l.dailyFilepath(day.UTC())

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(inPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	rows := map[string]*modeRow{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e PassEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil || e.RunID == "" {
			continue
		}
		r := rows[e.Mode]
		if r == nil {
			r = &modeRow{Mode: e.Mode}
			rows[e.Mode] = r
		}
		r.Passes++
		if e.Error != "" {
			r.Aborted++
		}
		r.Requested += e.Requested
		r.Significant += e.Significant
		r.Skipped += len(e.Skipped)
		r.Failed += len(e.Failed)
		r.Published += e.Published
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}

	modes := make([]string, 0, len(rows))
	for m := range rows {
		modes = append(modes, m)
	}
	sort.Strings(modes)

	outPath := l.summaryFilepath(day.UTC())
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write([]string{"mode", "passes", "aborted", "requested", "significant", "skipped", "failed", "published"}); err != nil {
		return "", err
	}
	total := modeRow{Mode: "TOTAL"}
	for _, m := range modes {
		r := rows[m]
		if err := w.Write(r.record()); err != nil {
			return "", err
		}
		total.Passes += r.Passes
		total.Aborted += r.Aborted
		total.Requested += r.Requested
		total.Significant += r.Significant
		total.Skipped += r.Skipped
		total.Failed += r.Failed
		total.Published += r.Published
	}
	if err := w.Write(total.record()); err != nil {
		return "", err
	}
	w.Flush()
	return outPath, w.Error()
}

func (r *modeRow) record() []string {
	return []string{
		r.Mode,
		strconv.Itoa(r.Passes),
		strconv.Itoa(r.Aborted),
		strconv.Itoa(r.Requested),
		strconv.Itoa(r.Significant),
		strconv.Itoa(r.Skipped),
		strconv.Itoa(r.Failed),
		strconv.Itoa(r.Published),
	}
}
