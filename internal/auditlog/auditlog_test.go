package auditlog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2024, 7, 4, 8, 15, 0, 0, time.UTC)

func newTestLog(t *testing.T) *Log {
	l := New(t.TempDir())
	l.now = func() time.Time { return fixed }
	return l
}

func readLines(t *testing.T, path string) []map[string]any {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestAppendPassAndExchange(t *testing.T) {
	l := newTestLog(t)

	require.NoError(t, l.AppendPass(PassEntry{RunID: "r1", Mode: "full-analysis", Requested: 3, Significant: 2, Failed: []string{"ADAUSDT"}}))
	require.NoError(t, l.AppendPass(PassEntry{RunID: "r2", Mode: "charts-only"}))
	require.NoError(t, l.AppendExchange(ExchangeEntry{RunID: "r1", Symbols: []string{"BTCUSDT"}, Prompt: "p", Response: "{}", Suggestion: "Hold"}))

	passes := readLines(t, filepath.Join(l.Dir(), "2024-07-04.txt"))
	require.Len(t, passes, 2)
	assert.Equal(t, "r1", passes[0]["run_id"])
	assert.Equal(t, "2024-07-04 08:15:00", passes[0]["time"])
	assert.Equal(t, []any{"ADAUSDT"}, passes[0]["failed"])

	exchanges := readLines(t, filepath.Join(l.Dir(), "exchanges", "2024-07-04.txt"))
	require.Len(t, exchanges, 1)
	assert.Equal(t, "Hold", exchanges[0]["suggestion"])
}

func TestCompressOlder(t *testing.T) {
	l := newTestLog(t)
	old := filepath.Join(l.Dir(), "2024-06-01.txt")
	fresh := filepath.Join(l.Dir(), "2024-07-04.txt")
	require.NoError(t, os.WriteFile(old, []byte("old line\n"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("new line\n"), 0o644))
	require.NoError(t, os.Chtimes(old, fixed.AddDate(0, 0, -30), fixed.AddDate(0, 0, -30)))
	require.NoError(t, os.Chtimes(fresh, fixed, fixed))

	n, err := l.CompressOlder(7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)

	f, err := os.Open(old + ".gz")
	require.NoError(t, err)
	defer f.Close()
	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Equal(t, "old line\n", string(data))
}

func TestCompressOlderDisabled(t *testing.T) {
	l := newTestLog(t)
	n, err := l.CompressOlder(0)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestSummarizeDay(t *testing.T) {
	l := newTestLog(t)
	require.NoError(t, l.AppendPass(PassEntry{RunID: "a", Mode: "full-analysis", Requested: 3, Significant: 2, Skipped: []string{"XLMUSDT"}, Published: 2}))
	require.NoError(t, l.AppendPass(PassEntry{RunID: "b", Mode: "full-analysis", Requested: 3, Significant: 3, Failed: []string{"DOTUSDT"}, Error: "prompt too long"}))
	require.NoError(t, l.AppendPass(PassEntry{RunID: "c", Mode: "charts-only", Requested: 3}))

	path, err := l.SummarizeDay(fixed)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(l.Dir(), "summary", "2024-07-04.csv"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"mode,passes,aborted,requested,significant,skipped,failed,published\n"+
			"charts-only,1,0,3,0,0,0,0\n"+
			"full-analysis,2,1,6,5,1,1,2\n"+
			"TOTAL,3,1,9,5,1,1,2\n",
		string(b))
}

func TestSummarizeDayWithoutPasses(t *testing.T) {
	l := newTestLog(t)
	path, err := l.SummarizeDay(fixed)
	require.NoError(t, err)
	assert.Empty(t, path)
}
