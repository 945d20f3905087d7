package room

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardparty/relay/internal/config"
)

func testRoomConfig() config.RoomConfig {
	return config.RoomConfig{
		Seats:           7,
		Capacity:        7,
		CodeLength:      6,
		StartingBalance: 5000,
	}
}

// scriptedSource returns a fixed sequence of values, then zeros.
type scriptedSource struct {
	values []int
	pos    int
}

func (s *scriptedSource) Intn(n int) int {
	if s.pos >= len(s.values) {
		return 0
	}
	v := s.values[s.pos] % n
	s.pos++
	return v
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(testRoomConfig(), zaptest.NewLogger(t))
}

func TestCreateRoomReachable(t *testing.T) {
	s := newTestStore(t)
	r, err := s.Create()
	require.NoError(t, err)

	got, ok := s.Get(r.ID())
	require.True(t, ok)
	assert.Same(t, r, got)
	assert.Equal(t, 1, s.Count())
}

func TestCreateCodeShape(t *testing.T) {
	s := newTestStore(t)
	r, err := s.Create()
	require.NoError(t, err)

	assert.Len(t, r.ID(), 6)
	for _, c := range r.ID() {
		assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected character %q in room code", c)
	}
}

func TestCreateRetriesOnCollision(t *testing.T) {
	// The first six draws repeat the initial code exactly, forcing one
	// collision before a distinct second code.
	src := &scriptedSource{values: []int{
		0, 0, 0, 0, 0, 0, // first room: AAAAAA
		0, 0, 0, 0, 0, 0, // second room, attempt 1: AAAAAA (collides)
		1, 1, 1, 1, 1, 1, // second room, attempt 2: BBBBBB
	}}
	s := NewStoreWithSource(testRoomConfig(), src, zaptest.NewLogger(t))

	first, err := s.Create()
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.ID())

	second, err := s.Create()
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.ID())
	assert.Equal(t, 2, s.Count())
}

func TestCreateExhaustedCodeSpace(t *testing.T) {
	// Every draw yields the same code; after the first room all
	// attempts collide.
	src := &scriptedSource{}
	s := NewStoreWithSource(testRoomConfig(), src, zaptest.NewLogger(t))

	_, err := s.Create()
	require.NoError(t, err)

	_, err = s.Create()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRoom)
}

func TestCreateNeverRepeatsCodes(t *testing.T) {
	// Statistical collision-retry check: 10,000 consecutive creates
	// must all yield distinct, reachable identifiers.
	s := newTestStore(t)

	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		r, err := s.Create()
		require.NoError(t, err)
		require.False(t, seen[r.ID()], "room code %q issued twice", r.ID())
		seen[r.ID()] = true
	}
	assert.Equal(t, 10000, s.Count())
}

func TestFetchUnknownRoom(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Fetch("NOROOM")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Contains(t, err.Error(), "NOROOM")
}

func TestFetchExistingRoom(t *testing.T) {
	s := newTestStore(t)
	created, err := s.Create()
	require.NoError(t, err)

	r, err := s.Fetch(created.ID())
	require.NoError(t, err)
	assert.Equal(t, created.ID(), r.ID())
}

func TestDeleteIfEmpty(t *testing.T) {
	s := newTestStore(t)
	r, err := s.Create()
	require.NoError(t, err)

	assert.True(t, s.DeleteIfEmpty(r.ID()))
	_, ok := s.Get(r.ID())
	assert.False(t, ok)
}

func TestDeleteIfEmptyOccupiedRoomStays(t *testing.T) {
	s := newTestStore(t)
	r, err := s.Create()
	require.NoError(t, err)
	require.NoError(t, r.Join("a"))

	assert.False(t, s.DeleteIfEmpty(r.ID()))
	_, ok := s.Get(r.ID())
	assert.True(t, ok)
}

func TestDeleteIfEmptyUnknownRoom(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.DeleteIfEmpty("NOROOM"))
}

func TestDeleteIgnoresOccupancy(t *testing.T) {
	s := newTestStore(t)
	r, err := s.Create()
	require.NoError(t, err)
	require.NoError(t, r.Join("a"))

	assert.True(t, s.Delete(r.ID()))
	assert.False(t, s.Delete(r.ID()))
	_, ok := s.Get(r.ID())
	assert.False(t, ok)
}

func TestEmptyRoomUnreachableAfterLastRemoval(t *testing.T) {
	s := newTestStore(t)
	r, err := s.Create()
	require.NoError(t, err)
	require.NoError(t, r.Join("a"))

	_, empty := r.Leave("a", false)
	require.True(t, empty)
	require.True(t, s.DeleteIfEmpty(r.ID()))

	_, ok := s.Get(r.ID())
	assert.False(t, ok)
}

func TestRoomsContaining(t *testing.T) {
	s := newTestStore(t)
	r1, err := s.Create()
	require.NoError(t, err)
	r2, err := s.Create()
	require.NoError(t, err)

	require.NoError(t, r1.Join("a"))
	require.NoError(t, r2.Join("b"))

	rooms := s.RoomsContaining("a")
	require.Len(t, rooms, 1)
	assert.Equal(t, r1.ID(), rooms[0].ID())

	assert.Empty(t, s.RoomsContaining("ghost"))
}
