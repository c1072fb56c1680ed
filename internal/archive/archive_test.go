package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/types"
)

var day = time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC)

func TestWriteAndReadRecords(t *testing.T) {
	a := New(t.TempDir(), logger.Nop())
	records := []types.AnalysisRecord{
		{Symbol: "BTCUSDT", Price: 67000, RSI: types.Float(55), Volume: 1000},
		{Symbol: "ETHUSDT", Price: 3500, Volume: 2000, CoinGeckoPrice: types.Float(3501)},
	}

	path, err := a.WriteRecords(context.Background(), "run-1", day, records)
	require.NoError(t, err)
	assert.Equal(t, "analysis-run-1.parquet", filepath.Base(path))
	assert.Equal(t, "2024-06-02", filepath.Base(filepath.Dir(path)))

	got, err := ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
	require.NotNil(t, got[0].RSI)
	assert.Equal(t, 55.0, *got[0].RSI)
	assert.Nil(t, got[1].RSI)
	assert.Equal(t, 3501.0, *got[1].CoinGeckoPrice)
}

func TestSyncDay(t *testing.T) {
	root := t.TempDir()
	charts := filepath.Join(root, "charts", "2024-06-02")
	require.NoError(t, os.MkdirAll(charts, 0o755))
	btc := filepath.Join(charts, "BTCUSDT-09-30-00.png")
	require.NoError(t, os.WriteFile(btc, []byte("png"), 0o644))

	a := New(filepath.Join(root, "archive"), logger.Nop())
	entries := []types.HistoryEntry{
		{Symbol: "BTCUSDT", Analysis: "BTCUSDT - Buy", ChartPath: btc},
		{Symbol: "ETHUSDT", Analysis: "missing image", ChartPath: filepath.Join(charts, "ETHUSDT-09-30-00.png")},
		{Symbol: "SOLUSDT", Analysis: "other day", ChartPath: filepath.Join(root, "charts", "2024-06-01", "SOLUSDT.png")},
		{Symbol: "ADAUSDT", Analysis: "no chart"},
	}

	n, err := a.SyncDay(context.Background(), day, entries)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	manifest, err := a.ReadManifest(day)
	require.NoError(t, err)
	assert.Equal(t, []ManifestEntry{{Symbol: "BTCUSDT", Analysis: "BTCUSDT - Buy", Img: "2024-06-02/BTCUSDT-09-30-00.png"}}, manifest)

	copied, err := os.ReadFile(filepath.Join(root, "archive", "2024-06-02", "BTCUSDT-09-30-00.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(copied))
}

func TestSyncDayNothingToArchive(t *testing.T) {
	a := New(t.TempDir(), logger.Nop())
	n, err := a.SyncDay(context.Background(), day, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = a.ReadManifest(day)
	assert.True(t, os.IsNotExist(err))
}
