package observability

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownManager_Wait(t *testing.T) {
	t.Run("runs hooks in order after cancellation", func(t *testing.T) {
		sm := NewShutdownManager(NopLogger(), nil, 0)

		var order []int
		sm.RegisterShutdownFunc(func(context.Context) error { order = append(order, 1); return nil })
		sm.RegisterShutdownFunc(func(context.Context) error { order = append(order, 2); return nil })

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.NoError(t, sm.Wait(ctx))
		assert.Equal(t, []int{1, 2}, order)
	})

	t.Run("collects hook errors", func(t *testing.T) {
		sm := NewShutdownManager(NopLogger(), &http.Server{}, 0)
		boom := errors.New("boom")
		sm.RegisterShutdownFunc(func(context.Context) error { return boom })

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, sm.Wait(ctx), boom)
	})
}
