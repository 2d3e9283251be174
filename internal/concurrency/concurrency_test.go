package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := New(context.Background(), 2)
	var done int32
	for i := 0; i < 10; i++ {
		p.Go(func(ctx context.Context) error {
			atomic.AddInt32(&done, 1)
			return nil
		})
	}
	require.NoError(t, p.Wait())
	assert.Equal(t, int32(10), done)
}

func TestPoolPropagatesFirstError(t *testing.T) {
	p := New(context.Background(), 4)
	boom := errors.New("boom")
	p.Go(func(ctx context.Context) error { return boom })
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	err := p.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
