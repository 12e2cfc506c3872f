package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls     atomic.Int32
	threshold atomic.Int64
}

func (s *countingSweeper) ExpireStalePresence(threshold time.Duration) {
	s.threshold.Store(int64(threshold))
	s.calls.Add(1)
}

func TestPresenceSweepWorker_Triggers_Sweeps_On_Every_Tick(t *testing.T) {
	req := require.New(t)
	sweeper := &countingSweeper{}
	worker := NewPresenceSweepWorker(testLogger(), sweeper, 20*time.Millisecond, 6*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	req.Eventually(func() bool { return sweeper.calls.Load() >= 2 },
		time.Second, 10*time.Millisecond)
	req.Equal(int64(6*time.Minute), sweeper.threshold.Load())
}
