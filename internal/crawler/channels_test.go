package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeedRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     SeedRequest
		wantErr bool
	}{
		{name: "valid", req: SeedRequest{ChannelID: "golang", Name: "Go"}},
		{name: "empty id", req: SeedRequest{ChannelID: "  "}, wantErr: true},
		{name: "whitespace id", req: SeedRequest{ChannelID: "go lang"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.req.Validate()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSeedChannel(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ch, already, err := SeedChannel(context.Background(), store, SeedRequest{ChannelID: "golang"})
	require.NoError(t, err)
	require.False(t, already)
	require.Equal(t, "golang", ch.Name)
	require.Equal(t, ChannelStatusActive, ch.Status)
	require.Zero(t, ch.LastCrawledTs)
	require.Zero(t, ch.LastSeenMessageID)

	// Seeding again must not reset watermarks.
	progressed := store.channel("golang")
	progressed.LastSeenMessageID = 42
	require.NoError(t, store.PutChannel(context.Background(), progressed))

	ch, already, err = SeedChannel(context.Background(), store, SeedRequest{ChannelID: "golang", Name: "renamed"})
	require.NoError(t, err)
	require.True(t, already)
	require.Equal(t, int64(42), ch.LastSeenMessageID)
	require.Equal(t, "golang", store.channel("golang").Name)
}

func TestSetChannelStatus(t *testing.T) {
	t.Parallel()

	seed := NewChannel("c1", "one")
	seed.LastSeenMessageID = 9
	store := newFakeStore(seed)

	ch, err := SetChannelStatus(context.Background(), store, StatusRequest{ChannelID: "c1", Status: ChannelStatusPaused})
	require.NoError(t, err)
	require.Equal(t, ChannelStatusPaused, ch.Status)
	require.Equal(t, int64(9), store.channel("c1").LastSeenMessageID)

	_, err = SetChannelStatus(context.Background(), store, StatusRequest{ChannelID: "missing", Status: ChannelStatusActive})
	require.ErrorIs(t, err, ErrChannelNotFound)

	_, err = SetChannelStatus(context.Background(), store, StatusRequest{ChannelID: "c1", Status: "deleted"})
	require.Error(t, err)
}
