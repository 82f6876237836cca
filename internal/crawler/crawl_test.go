package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCrawlerRunOnceContinuesPastFailingChannel(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_000_000, 0)
	clock := &fixedClock{now: now}
	store := newFakeStore(
		channelAt("bad", 1, ChannelStatusActive),
		channelAt("good", 2, ChannelStatusActive),
	)
	platform := &mockPlatform{}
	platform.On("FetchMessages", mock.Anything, "bad", mock.Anything).
		Return(nil, errors.New("boom")).Once()
	platform.On("FetchMessages", mock.Anything, "good", FetchWindow{MinID: 0, MaxID: 0, Limit: 100}).
		Return([]PlatformMessage{{ID: 7, Date: now.Unix()}}, nil).Once()
	platform.On("FetchMessages", mock.Anything, "good", FetchWindow{MinID: 0, MaxID: 7, Limit: 100}).
		Return([]PlatformMessage{}, nil).Once()
	pub := &fakePublisher{}

	crawler := NewCrawler(
		NewScheduler(store, clock, time.Minute, nil),
		NewProcessor(store, platform, nil, nil, clock, ProcessorConfig{}, nil),
		pub,
		&sequenceIDs{},
		clock,
		CrawlerConfig{Topic: "crawl-events"},
		zap.NewNop(),
	)

	summary, err := crawler.RunOnce(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "channel bad")
	require.Equal(t, "run-1", summary.RunID)
	require.Equal(t, 2, summary.Selected)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 1, summary.MessagesStored)

	require.Equal(t, now.Unix(), store.channel("bad").LastCrawledTs)
	require.Equal(t, now.Unix(), store.channel("good").LastCrawledTs)
	require.Equal(t, int64(7), store.channel("good").LastSeenMessageID)

	require.Len(t, pub.events, 2)
	failed, ok := pub.events[0].(CrawlEvent)
	require.True(t, ok)
	require.Equal(t, OutcomeFailed, failed.Outcome)
	require.Contains(t, failed.Error, "boom")
}

func TestCrawlerRunOnceCooldownAppliesAfterFailure(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Unix(1_000_000, 0)}
	store := newFakeStore(channelAt("bad", 0, ChannelStatusActive))
	platform := &mockPlatform{}
	platform.On("FetchMessages", mock.Anything, "bad", mock.Anything).
		Return(nil, errors.New("boom")).Once()

	crawler := NewCrawler(
		NewScheduler(store, clock, 5*time.Minute, nil),
		NewProcessor(store, platform, nil, nil, clock, ProcessorConfig{}, nil),
		nil,
		&sequenceIDs{},
		clock,
		CrawlerConfig{},
		nil,
	)

	_, err := crawler.RunOnce(context.Background())
	require.Error(t, err)

	clock.Advance(time.Minute)
	summary, err := crawler.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, summary.Selected)
	platform.AssertNumberOfCalls(t, "FetchMessages", 1)
}

func TestCrawlerRunOncePublishFailureIsIgnored(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Unix(1_000_000, 0)}
	store := newFakeStore(channelAt("c1", 0, ChannelStatusActive))
	platform := &mockPlatform{}
	platform.On("FetchMessages", mock.Anything, "c1", mock.Anything).
		Return([]PlatformMessage{}, nil).Once()

	crawler := NewCrawler(
		NewScheduler(store, clock, time.Minute, nil),
		NewProcessor(store, platform, nil, nil, clock, ProcessorConfig{}, nil),
		&fakePublisher{err: errors.New("topic missing")},
		&sequenceIDs{},
		clock,
		CrawlerConfig{Topic: "events"},
		nil,
	)

	summary, err := crawler.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeExhausted, summary.Results[0].Outcome)
}
