package bot_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robalyx/socialgraph/internal/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcher_ProcessesInOrder(t *testing.T) {
	t.Parallel()

	d := bot.NewDispatcher(16, zap.NewNop())

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)

	for i := range 5 {
		wg.Add(1)
		require.True(t, d.Submit("test", func(context.Context) error {
			defer wg.Done()

			mu.Lock()
			order = append(order, i)
			mu.Unlock()

			return nil
		}))
	}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go d.Run(ctx)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestDispatcher_RecoversFromFailures(t *testing.T) {
	t.Parallel()

	d := bot.NewDispatcher(16, zap.NewNop())
	done := make(chan struct{})

	d.Submit("panics", func(context.Context) error {
		panic("boom")
	})
	d.Submit("fails", func(context.Context) error {
		return errors.New("store down")
	})
	d.Submit("succeeds", func(context.Context) error {
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go d.Run(ctx)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher stopped after a failing event")
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	t.Parallel()

	d := bot.NewDispatcher(2, zap.NewNop())
	noop := func(context.Context) error { return nil }

	assert.True(t, d.Submit("a", noop))
	assert.True(t, d.Submit("b", noop))
	assert.False(t, d.Submit("c", noop))

	assert.Equal(t, 2, d.Pending())
	assert.Equal(t, int64(1), d.Dropped())
}
