package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPurger struct {
	calls atomic.Int32
}

func (p *countingPurger) DeleteExpiredTokens(context.Context, time.Time) (int64, error) {
	p.calls.Add(1)
	return 0, nil
}

func TestScheduler_AddSweep(t *testing.T) {
	sched := NewScheduler(nil)
	sweeper := NewTokenSweeper(&countingPurger{})

	require.NoError(t, sched.AddSweep("", sweeper), "empty spec uses the default schedule")
	require.NoError(t, sched.AddSweep("*/15 * * * *", sweeper))
	assert.Equal(t, 2, sched.Jobs())

	err := sched.AddSweep("every hour", sweeper)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to schedule token sweep")
	assert.Equal(t, 2, sched.Jobs())
}

func TestScheduler_RunsSweep(t *testing.T) {
	purger := &countingPurger{}
	sched := NewScheduler(nil)
	require.NoError(t, sched.AddSweep("@every 1s", NewTokenSweeper(purger)))

	sched.Start()
	assert.Eventually(t, func() bool { return purger.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, sched.Stop(ctx))
}

func TestFields(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"entry": 1, "next": "soon"}, fields([]interface{}{"entry", 1, "next", "soon", "dangling"}))
}
