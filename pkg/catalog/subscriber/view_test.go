package subscriber

import (
	"testing"
	"time"

	"github.com/namimod25/toko-online/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(t *testing.T, room string, kind catalog.Kind, payload any) catalog.Message {
	t.Helper()

	msg, err := catalog.NewMessage(catalog.ChannelName(room, kind), room, payload)
	require.NoError(t, err)
	return *msg
}

func TestViewApplyIsIdempotent(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	kopi := catalog.Product{ID: "42", Name: "Kopi", Price: 25000, Stock: 10, UpdatedAt: at}
	renamed := kopi
	renamed.Name = "Kopi Luwak"

	tests := []struct {
		name    string
		initial []catalog.Product
		msg     catalog.Message
		want    []catalog.Product
	}{
		{
			name: "created inserts when absent",
			msg:  message(t, catalog.GlobalRoom, catalog.Created, kopi),
			want: []catalog.Product{kopi},
		},
		{
			name:    "created keeps existing",
			initial: []catalog.Product{renamed},
			msg:     message(t, catalog.GlobalRoom, catalog.Created, kopi),
			want:    []catalog.Product{renamed},
		},
		{
			name:    "updated replaces when present",
			initial: []catalog.Product{kopi},
			msg:     message(t, catalog.ProductRoom("42"), catalog.Updated, renamed),
			want:    []catalog.Product{renamed},
		},
		{
			name: "updated ignores unknown product",
			msg:  message(t, catalog.GlobalRoom, catalog.Updated, renamed),
			want: []catalog.Product{},
		},
		{
			name:    "deleted removes when present",
			initial: []catalog.Product{kopi},
			msg:     message(t, catalog.GlobalRoom, catalog.Deleted, catalog.DeletedPayload{ID: "42"}),
			want:    []catalog.Product{},
		},
		{
			name:    "stock patches when present",
			initial: []catalog.Product{kopi},
			msg:     message(t, catalog.ProductRoom("42"), catalog.StockChanged, catalog.StockPayload{ID: "42", Stock: 7}),
			want:    []catalog.Product{{ID: "42", Name: "Kopi", Price: 25000, Stock: 7, UpdatedAt: at}},
		},
		{
			name:    "admin stock payload patches too",
			initial: []catalog.Product{kopi},
			msg: message(t, catalog.AdminRoom, catalog.StockChanged, catalog.AdminStockPayload{
				ID: "42", Stock: 3, PreviousStock: 10, Delta: -7, CommittedAt: at,
			}),
			want: []catalog.Product{{ID: "42", Name: "Kopi", Price: 25000, Stock: 3, UpdatedAt: at}},
		},
		{
			name:    "admin created payload carries the product",
			initial: nil,
			msg:     message(t, catalog.AdminRoom, catalog.Created, catalog.AdminProductPayload{Product: kopi, CommittedAt: at}),
			want:    []catalog.Product{kopi},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := NewView(tt.initial...)
			_, err := once.Apply(tt.msg)
			require.NoError(t, err)

			twice := NewView(tt.initial...)
			_, err = twice.Apply(tt.msg)
			require.NoError(t, err)
			changed, err := twice.Apply(tt.msg)
			require.NoError(t, err)

			assert.False(t, changed, "second apply changes nothing")
			assert.Equal(t, tt.want, once.List())
			assert.Equal(t, once.List(), twice.List())
		})
	}
}

func TestViewIgnoresControlMessages(t *testing.T) {
	v := NewView()

	for _, channel := range []string{catalog.ConnectedChannel, catalog.PongChannel, catalog.RoomJoinedChannel, "nonsense"} {
		changed, err := v.Apply(catalog.Message{Channel: channel})
		require.NoError(t, err)
		assert.False(t, changed)
	}
	assert.Equal(t, 0, v.Len())
}

func TestViewRejectsBadPayload(t *testing.T) {
	v := NewView()

	_, err := v.Apply(catalog.Message{Channel: "product-created", Payload: []byte(`{"id":`)})
	assert.Error(t, err)

	_, err = v.Apply(catalog.Message{Channel: "product-created", Payload: []byte(`{"name":"x"}`)})
	assert.Error(t, err)
}

func TestViewReset(t *testing.T) {
	v := NewView(catalog.Product{ID: "1"})
	v.Reset([]catalog.Product{{ID: "2"}, {ID: "3"}})

	_, ok := v.Get("1")
	assert.False(t, ok)
	assert.Equal(t, 2, v.Len())
}
