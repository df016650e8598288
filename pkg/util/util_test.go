package util

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDateTpl(t *testing.T) {
	const ts = int64(1699603200000) // 2023-11-10T08:00:00Z

	tests := []struct {
		tpl  string
		want string
	}{
		{"YYYY.MM.DD", "2023.11.10"},
		{"DD/MM/YY", "10/11/23"},
		{"YYYY-MM-DD hh:mm:ss", "2023-11-10 08:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.tpl, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDateTpl(ts, tt.tpl))
		})
	}
	assert.Empty(t, FormatDateTpl(0, "YYYY"))
}

func TestParallelRunsAllAndJoinsErrors(t *testing.T) {
	var seen atomic.Int32
	inputs := []int{1, 2, 3, 4, 5, 6, 7}

	err := Parallel(context.Background(), inputs, 3, func(_ context.Context, n int) error {
		seen.Add(1)
		if n%3 == 0 {
			return fmt.Errorf("item %d", n)
		}
		return nil
	})

	assert.EqualValues(t, len(inputs), seen.Load())
	assert.ErrorContains(t, err, "item 3")
	assert.ErrorContains(t, err, "item 6")
}

func TestParallelCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Parallel(ctx, []int{1, 2}, 1, func(ctx context.Context, _ int) error {
		return ctx.Err()
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NoError(t, Parallel(ctx, []int(nil), 1, func(context.Context, int) error { return nil }))
}
