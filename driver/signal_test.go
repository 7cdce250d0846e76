package driver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/driver"
)

func TestClassify(t *testing.T) {
	withCalls, err := conv.Assistant("", call("1", "echo", `{}`))
	require.NoError(t, err)
	plain, err := conv.Assistant("text")
	require.NoError(t, err)

	cases := []struct {
		reason conv.FinishReason
		msg    conv.Message
		want   driver.SignalKind
		failed bool
	}{
		{conv.FinishToolCalls, withCalls, driver.ToolCalls, false},
		{conv.FinishLength, plain, driver.Truncated, true},
		{conv.FinishContentFilter, plain, driver.ContentFiltered, true},
		{conv.FinishFunctionCall, plain, driver.Unsupported, true},
		{conv.FinishStop, plain, driver.Normal, false},
		{"", plain, driver.Normal, false},
		{"something_new", plain, driver.Normal, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.reason), func(t *testing.T) {
			s := driver.Classify(tc.reason, tc.msg)
			require.Equal(t, tc.want, s.Kind)
			require.Equal(t, tc.failed, s.Failed())
			require.Equal(t, tc.reason, s.Reason)
			if tc.want == driver.ToolCalls {
				require.Len(t, s.Calls, 1)
			} else {
				require.Empty(t, s.Calls)
			}
		})
	}
}

func TestGate(t *testing.T) {
	require.Equal(t, driver.DefaultGateCapacity, driver.NewGate(0).Capacity())

	g := driver.NewGate(2)
	ctx := context.Background()
	require.NoError(t, g.Acquire(ctx))
	require.NoError(t, g.Acquire(ctx))
	require.Equal(t, 2, g.InFlight())

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, g.Acquire(short), context.DeadlineExceeded)
	require.Equal(t, 2, g.InFlight())

	g.Release()
	require.NoError(t, g.Acquire(ctx))
	g.Release()
	g.Release()
	require.Equal(t, 0, g.InFlight())
}
