package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoom(t *testing.T) {
	scope, id, err := ParseRoom("product:42")
	require.NoError(t, err)
	assert.Equal(t, ScopeProduct, scope)
	assert.Equal(t, "42", id)

	scope, _, err = ParseRoom(AdminRoom)
	require.NoError(t, err)
	assert.Equal(t, ScopeAdmin, scope)

	for _, bad := range []string{"", "lobby", "product:", "product:a b", "product:a:b", "Global", "product:" + strings.Repeat("9", 129)} {
		_, _, err := ParseRoom(bad)
		assert.ErrorIs(t, err, ErrInvalidRoom, bad)
	}
}

func TestChannelName(t *testing.T) {
	cases := []struct {
		room string
		kind Kind
		want string
	}{
		{GlobalRoom, Created, "product-created"},
		{GlobalRoom, Updated, "product-updated"},
		{GlobalRoom, Deleted, "product-deleted"},
		{GlobalRoom, StockChanged, "stock-updated"},
		{"product:42", Updated, "product-42-updated"},
		{"product:42", Deleted, "product-42-deleted"},
		{"product:42", StockChanged, "product-42-stock"},
		{AdminRoom, Created, "admin-product-created"},
		{AdminRoom, StockChanged, "admin-stock-updated"},
	}

	for _, tc := range cases {
		got := ChannelName(tc.room, tc.kind)
		assert.Equal(t, tc.want, got)

		scope, kind, id, ok := ParseChannel(got)
		require.True(t, ok, got)
		assert.Equal(t, tc.kind, kind)
		if scope == ScopeProduct {
			assert.Equal(t, "42", id)
		}
	}
}

func TestParseChannelIgnoresControlChannels(t *testing.T) {
	for _, ch := range []string{ConnectedChannel, RoomJoinedChannel, PongChannel, ErrorChannel, "product-"} {
		_, _, _, ok := ParseChannel(ch)
		assert.False(t, ok, ch)
	}
}

func TestChannelNamePanicsOnProgrammingErrors(t *testing.T) {
	assert.Panics(t, func() { ChannelName("lobby", Created) })
	assert.Panics(t, func() { ChannelName(GlobalRoom, Kind("archived")) })
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage("product-42-stock", "product:42", StockPayload{ID: "42", Stock: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"42","stock":7}`, string(msg.Payload))

	msg, err = NewMessage(PongChannel, "", nil)
	require.NoError(t, err)
	assert.Nil(t, msg.Payload)
}
