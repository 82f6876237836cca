package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/chansearch/internal/crawler"
)

var _ crawler.Store = (*Store)(nil)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "chansearch.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
}

func TestChannelRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.GetChannel(ctx, "nope")
	require.ErrorIs(t, err, crawler.ErrChannelNotFound)

	ch := crawler.NewChannel("golang", "Go")
	require.NoError(t, store.PutChannel(ctx, ch))
	ch.LastCrawledTs = 100
	ch.LastSeenMessageID = 55
	require.NoError(t, store.PutChannel(ctx, ch))

	got, err := store.GetChannel(ctx, "golang")
	require.NoError(t, err)
	require.Equal(t, ch, got)
}

func TestListChannelsOrdersByLastCrawl(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	for _, c := range []struct {
		id     string
		ts     int64
		status crawler.ChannelStatus
	}{
		{"late", 300, crawler.ChannelStatusActive},
		{"early", 100, crawler.ChannelStatusActive},
		{"paused", 0, crawler.ChannelStatusPaused},
		{"mid", 200, crawler.ChannelStatusActive},
	} {
		ch := crawler.NewChannel(c.id, c.id)
		ch.LastCrawledTs = c.ts
		ch.Status = c.status
		require.NoError(t, store.PutChannel(ctx, ch))
	}

	active, err := store.ListChannels(ctx, crawler.ChannelQuery{Status: crawler.ChannelStatusActive, Limit: 2})
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "early", active[0].ID)
	require.Equal(t, "mid", active[1].ID)

	all, err := store.ListChannels(ctx, crawler.ChannelQuery{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "paused", all[0].ID)
}

func TestPutMessageIdempotent(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutMessage(ctx, crawler.Message{ChannelID: "c", MessageID: 1, Text: "first"}))
	require.NoError(t, store.PutMessage(ctx, crawler.Message{ChannelID: "c", MessageID: 1, Text: "second"}))

	page, err := store.ScanMessages(ctx, crawler.ScanRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "first", page.Items[0].Text)
	require.Empty(t, page.NextToken)
}

func TestScanMessagesOrdersNumerically(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	for _, m := range []crawler.Message{
		{ChannelID: "a", MessageID: 10},
		{ChannelID: "a", MessageID: 9},
		{ChannelID: "b", MessageID: 1},
		{ChannelID: "a", MessageID: 100},
	} {
		require.NoError(t, store.PutMessage(ctx, m))
	}

	var ids []string
	token := ""
	for {
		page, err := store.ScanMessages(ctx, crawler.ScanRequest{Limit: 3, Token: token})
		require.NoError(t, err)
		for _, m := range page.Items {
			ids = append(ids, m.DocID())
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}
	require.Equal(t, []string{"a:9", "a:10", "a:100", "b:1"}, ids)
	require.NoError(t, store.Ping(ctx))
}
