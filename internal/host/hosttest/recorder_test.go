package hosttest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ivlev/guideshots/internal/host"
)

func TestRecorderLimitKeepsLatestCalls(t *testing.T) {
	rec := New()
	rec.Limit = 3
	ctx := context.Background()

	for layer := range 10 {
		_ = rec.NavigateLayerView(ctx, layer, 0)
	}
	_ = rec.Slice(ctx)

	calls := rec.Calls()
	assert.Len(t, calls, 3)
	assert.Equal(t, []any{8, 0}, calls[0].Args)
	assert.Equal(t, []any{9, 0}, calls[1].Args)
	assert.Equal(t, host.MethodSlice, calls[2].Method)
}

func TestRecorderUnlimitedByDefault(t *testing.T) {
	rec := New()
	for range 100 {
		_ = rec.SwitchToSolidView(context.Background())
	}
	assert.Equal(t, 100, rec.Count(host.MethodSolidView))
}
