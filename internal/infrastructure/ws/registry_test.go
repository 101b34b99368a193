package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/namimod25/toko-online/internal/infrastructure/logging"
	"github.com/namimod25/toko-online/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(logging.NewNopLogger(), nil)
}

func TestRegisterStartsWithNoRooms(t *testing.T) {
	r := newTestRegistry()
	r.Register("c1", &fakeSender{})

	rooms, err := r.RoomsOf("c1")
	require.NoError(t, err)
	assert.Empty(t, rooms)
	assert.Equal(t, 1, r.Count())
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	first, second := &fakeSender{}, &fakeSender{}

	r.Register("c1", first)
	require.NoError(t, r.Join("c1", catalog.GlobalRoom))
	r.Register("c1", second)

	require.NoError(t, r.Deliver("c1", []byte(`{"channel":"x"}`)))
	assert.Len(t, first.frames, 1)
	assert.Empty(t, second.frames)

	rooms, err := r.RoomsOf("c1")
	require.NoError(t, err)
	assert.Equal(t, []string{catalog.GlobalRoom}, rooms, "re-registering keeps memberships")
	assert.Equal(t, 1, r.Count())
}

func TestMembershipIsNetOfJoinsAndLeaves(t *testing.T) {
	r := newTestRegistry()
	r.Register("c1", &fakeSender{})
	r.Register("c2", &fakeSender{})

	p42 := catalog.ProductRoom("42")

	require.NoError(t, r.Join("c1", catalog.GlobalRoom))
	require.NoError(t, r.Join("c1", p42))
	require.NoError(t, r.Join("c1", p42))
	require.NoError(t, r.Leave("c1", catalog.AdminRoom))
	require.NoError(t, r.Join("c2", p42))
	require.NoError(t, r.Leave("c2", p42))
	require.NoError(t, r.Join("c2", catalog.AdminRoom))

	rooms, err := r.RoomsOf("c1")
	require.NoError(t, err)
	assert.Equal(t, []string{catalog.GlobalRoom, p42}, rooms)

	rooms, err = r.RoomsOf("c2")
	require.NoError(t, err)
	assert.Equal(t, []string{catalog.AdminRoom}, rooms)

	assert.ElementsMatch(t, []string{"c1"}, r.MembersOf(p42))
	assert.ElementsMatch(t, []string{"c2"}, r.MembersOf(catalog.AdminRoom))
	assert.Empty(t, r.MembersOf(catalog.ProductRoom("43")))
}

func TestJoinUnknownConnectionIsIgnored(t *testing.T) {
	r := newTestRegistry()

	assert.ErrorIs(t, r.Join("ghost", catalog.GlobalRoom), ErrConnectionNotFound)
	assert.ErrorIs(t, r.Leave("ghost", catalog.GlobalRoom), ErrConnectionNotFound)
	assert.Empty(t, r.MembersOf(catalog.GlobalRoom))
	assert.Equal(t, 0, r.Count())
}

func TestUnregisterDropsMembershipsAndClosesSender(t *testing.T) {
	obs := newCountingObserver()
	r := NewRegistry(logging.NewNopLogger(), obs)
	s := &fakeSender{}

	r.Register("c1", s)
	require.NoError(t, r.Join("c1", catalog.GlobalRoom))
	require.NoError(t, r.Join("c1", catalog.AdminRoom))

	r.Unregister("c1")

	assert.True(t, s.isClosed())
	assert.Empty(t, r.MembersOf(catalog.GlobalRoom))
	assert.Empty(t, r.MembersOf(catalog.AdminRoom))
	assert.ErrorIs(t, r.Deliver("c1", []byte("{}")), ErrConnectionNotFound)
	_, err := r.RoomsOf("c1")
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	r.Unregister("c1")
	assert.Equal(t, 1, obs.opened)
	assert.Equal(t, 1, obs.closed, "second unregister is a no-op")
}

func TestCloseUnregistersEveryConnection(t *testing.T) {
	r := newTestRegistry()
	senders := make([]*fakeSender, 3)
	for i := range senders {
		senders[i] = &fakeSender{}
		r.Register(fmt.Sprintf("c%d", i), senders[i])
	}

	r.Close()

	assert.Equal(t, 0, r.Count())
	for _, s := range senders {
		assert.True(t, s.isClosed())
	}
}

func TestConcurrentMembershipChanges(t *testing.T) {
	r := newTestRegistry()

	const conns = 32
	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		id := fmt.Sprintf("c%d", i)
		r.Register(id, &fakeSender{})

		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				room := catalog.ProductRoom(fmt.Sprint(j % 5))
				_ = r.Join(id, room)
				_ = r.Leave(id, room)
				_ = r.MembersOf(room)
			}
			_ = r.Join(id, catalog.GlobalRoom)
		}()
	}
	wg.Wait()

	assert.Len(t, r.MembersOf(catalog.GlobalRoom), conns)
	for j := 0; j < 5; j++ {
		assert.Empty(t, r.MembersOf(catalog.ProductRoom(fmt.Sprint(j))))
	}
}
