package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/pipeline"
)

type countingRunner struct {
	mu    sync.Mutex
	modes []string
	err   error
	block chan struct{}
}

func (r *countingRunner) Run(_ context.Context, mode string) (*pipeline.PassReport, error) {
	r.mu.Lock()
	r.modes = append(r.modes, mode)
	r.mu.Unlock()
	if r.block != nil {
		<-r.block
	}
	if r.err != nil {
		return nil, r.err
	}
	return &pipeline.PassReport{RunID: "r", Mode: mode}, nil
}

func (r *countingRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.modes)
}

func TestRunNow(t *testing.T) {
	r := &countingRunner{}
	s := New(context.Background(), r, "skip-gpt", logger.Nop())

	s.RunNow()
	assert.Equal(t, []string{"skip-gpt"}, r.modes)
	assert.Equal(t, 1, s.Passes())
}

func TestRunNowSurvivesPassError(t *testing.T) {
	r := &countingRunner{err: errors.New("boom")}
	s := New(context.Background(), r, "full-analysis", logger.Nop())

	s.RunNow()
	s.RunNow()
	assert.Equal(t, 2, r.calls())
}

func TestCancelledContextSkipsPass(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &countingRunner{}
	s := New(ctx, r, "full-analysis", logger.Nop())

	s.RunNow()
	assert.Zero(t, r.calls())
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := New(context.Background(), &countingRunner{}, "full-analysis", logger.Nop())
	require.Error(t, s.Register("every tuesday"))
	require.Error(t, s.Register("*/5 * * * *"), "five-field specs need the seconds column")
	require.NoError(t, s.Register("0 */15 * * * *"))
}

func TestScheduledPassesDoNotOverlap(t *testing.T) {
	r := &countingRunner{block: make(chan struct{})}
	s := New(context.Background(), r, "full-analysis", logger.Nop())
	require.NoError(t, s.Register("* * * * * *"))

	s.Start()
	require.Eventually(t, func() bool { return r.calls() == 1 }, 3*time.Second, 10*time.Millisecond)
	// further ticks fire while the first pass is blocked
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, 1, r.calls())

	close(r.block)
	s.Stop()
}
