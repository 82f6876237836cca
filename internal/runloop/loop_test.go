package runloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRejectsBadArguments(t *testing.T) {
	t.Parallel()

	_, err := New("x", 0, PolicyDrift, nil, nil)
	require.Error(t, err)
	_, err = New("x", time.Second, "burst", nil, nil)
	require.Error(t, err)

	l, err := New("x", time.Second, "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, PolicyDrift, l.policy)
}

func TestNextDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  Policy
		elapsed time.Duration
		want    time.Duration
	}{
		{name: "drift fast work", policy: PolicyDrift, elapsed: 2 * time.Second, want: 8 * time.Second},
		{name: "drift slow work", policy: PolicyDrift, elapsed: 15 * time.Second, want: 0},
		{name: "drift exact", policy: PolicyDrift, elapsed: 10 * time.Second, want: 0},
		{name: "fixed delay", policy: PolicyFixedDelay, elapsed: 15 * time.Second, want: 10 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			l, err := New("x", 10*time.Second, tc.policy, clockwork.NewFakeClock(), nil)
			require.NoError(t, err)
			require.Equal(t, tc.want, l.nextDelay(tc.elapsed))
		})
	}
}

func TestRunSleepsRemainderOfInterval(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	l, err := New("test", 10*time.Second, PolicyDrift, clock, zap.NewNop())
	require.NoError(t, err)

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, func(context.Context) error {
			calls.Add(1)
			clock.Advance(3 * time.Second)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	clock.BlockUntil(1)
	clock.Advance(6 * time.Second)
	require.Never(t, func() bool { return calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRunContinuesAfterErrorsAndPanics(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	l, err := New("test", time.Second, PolicyFixedDelay, clock, zap.NewNop())
	require.NoError(t, err)

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, func(context.Context) error {
			switch calls.Add(1) {
			case 1:
				return errors.New("store unavailable")
			case 2:
				panic("nil map")
			default:
				return nil
			}
		})
	}()

	for want := int32(1); want <= 3; want++ {
		require.Eventually(t, func() bool { return calls.Load() == want }, time.Second, 5*time.Millisecond)
		if want < 3 {
			clock.BlockUntil(1)
			clock.Advance(time.Second)
		}
	}

	cancel()
	require.NoError(t, <-done)
}

func TestRunReturnsWhenCancelledDuringSleep(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	l, err := New("test", time.Hour, PolicyDrift, clock, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, func(context.Context) error { return nil })
	}()
	clock.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}
