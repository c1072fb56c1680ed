package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/types"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "database", "crypto_analysis.db")
	s, err := Open(context.Background(), DriverSQLite, path, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestInsertAndListSince(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	id1, err := s.Insert(ctx, types.HistoryEntry{RunID: "r1", Symbol: "BTCUSDT", Analysis: "BTCUSDT - Buy", ChartPath: "charts/a.png", CreatedAt: base})
	require.NoError(t, err)
	id2, err := s.Insert(ctx, types.HistoryEntry{RunID: "r1", Symbol: "ETHUSDT", Analysis: "ETHUSDT - Hold", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	all, err := s.ListSince(ctx, base.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "BTCUSDT", all[0].Symbol)
	assert.Equal(t, "r1", all[0].RunID)
	assert.Equal(t, "charts/a.png", all[0].ChartPath)
	assert.True(t, base.Equal(all[0].CreatedAt))
	assert.Equal(t, "", all[1].ChartPath)

	recent, err := s.ListSince(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, id2, recent[0].ID)
}

func TestInsertDefaultsTimestamp(t *testing.T) {
	s, _ := openTemp(t)
	before := time.Now().Add(-time.Second)

	_, err := s.Insert(context.Background(), types.HistoryEntry{Symbol: "SOLUSDT", Analysis: "x"})
	require.NoError(t, err)

	got, err := s.ListSince(context.Background(), before)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReopenKeepsRows(t *testing.T) {
	s, path := openTemp(t)
	_, err := s.Insert(context.Background(), types.HistoryEntry{Symbol: "BTCUSDT", Analysis: "x", CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	again, err := Open(context.Background(), DriverSQLite, path, logger.Nop())
	require.NoError(t, err)
	defer again.Close()

	rows, err := again.ListSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestUpgradesLegacyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	s, err := Open(context.Background(), DriverSQLite, path, logger.Nop())
	require.NoError(t, err)
	_, err = s.db.Exec(`DROP TABLE history`)
	require.NoError(t, err)
	_, err = s.db.Exec(`CREATE TABLE history (id INTEGER PRIMARY KEY AUTOINCREMENT, symbol TEXT NOT NULL, analysis TEXT NOT NULL, img TEXT, timestamp DATETIME NOT NULL)`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), DriverSQLite, path, logger.Nop())
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Insert(context.Background(), types.HistoryEntry{RunID: "r2", Symbol: "ADAUSDT", Analysis: "x", CreatedAt: time.Now()})
	assert.NoError(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn", logger.Nop())
	assert.ErrorContains(t, err, "unsupported")
}
