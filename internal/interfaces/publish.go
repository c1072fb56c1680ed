package interfaces

import (
	"context"
	"time"

	"crypto-llm-analyst/internal/types"
)

// Notifier delivers one per-symbol message with its chart image.
type Notifier interface {
	Send(ctx context.Context, message, imagePath string) error
}

// ChartRenderer writes a chart image for a candle window and returns its path.
type ChartRenderer interface {
	Render(ctx context.Context, symbol, interval string, candles []types.Candle) (string, error)
}

// HistoryStore is the append-only record of published messages.
type HistoryStore interface {
	Insert(ctx context.Context, e types.HistoryEntry) (int64, error)
	ListSince(ctx context.Context, since time.Time) ([]types.HistoryEntry, error)
}
