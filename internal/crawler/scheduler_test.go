package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func channelAt(id string, lastCrawled int64, status ChannelStatus) Channel {
	ch := NewChannel(id, id)
	ch.LastCrawledTs = lastCrawled
	ch.Status = status
	return ch
}

func TestSchedulerSkipsChannelsInsideCooldown(t *testing.T) {
	t.Parallel()

	now := int64(10_000)
	store := newFakeStore(
		channelAt("never", 0, ChannelStatusActive),
		channelAt("old", now-301, ChannelStatusActive),
		channelAt("edge", now-300, ChannelStatusActive),
		channelAt("fresh", now-299, ChannelStatusActive),
	)
	sched := NewScheduler(store, &fixedClock{now: time.Unix(now, 0)}, 300*time.Second, zap.NewNop())

	batch, err := sched.SelectBatch(context.Background(), 10)
	require.NoError(t, err)

	ids := make([]string, 0, len(batch))
	for _, ch := range batch {
		ids = append(ids, ch.ID)
	}
	require.Equal(t, []string{"never", "old", "edge"}, ids)
}

func TestSchedulerOnlySelectsActiveChannels(t *testing.T) {
	t.Parallel()

	store := newFakeStore(
		channelAt("paused", 0, ChannelStatusPaused),
		channelAt("archived", 0, ChannelStatusArchived),
		channelAt("active", 5, ChannelStatusActive),
	)
	sched := NewScheduler(store, &fixedClock{now: time.Unix(100_000, 0)}, 0, nil)

	batch, err := sched.SelectBatch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.Equal(t, "active", batch[0].ID)
}

func TestSchedulerBatchMayBeShorterThanLimit(t *testing.T) {
	t.Parallel()

	store := newFakeStore(
		channelAt("a", 1, ChannelStatusActive),
		channelAt("b", 99_990, ChannelStatusActive),
	)
	sched := NewScheduler(store, &fixedClock{now: time.Unix(100_000, 0)}, time.Minute, nil)

	batch, err := sched.SelectBatch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.Equal(t, "a", batch[0].ID)
}

func TestSchedulerPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.listErr = errors.New("timeout")
	sched := NewScheduler(store, &fixedClock{now: time.Unix(1, 0)}, 0, nil)

	_, err := sched.SelectBatch(context.Background(), 5)
	require.ErrorContains(t, err, "list channels")
}
