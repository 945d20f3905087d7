package ws_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardparty/relay/internal/config"
	"github.com/cardparty/relay/internal/frontend/ws"
	"github.com/cardparty/relay/internal/game/participant"
	"github.com/cardparty/relay/internal/game/room"
	"github.com/cardparty/relay/internal/relay"
	"github.com/cardparty/relay/internal/testutil"
)

const frameTimeout = 5 * time.Second

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := config.Default()

	registry := participant.NewRegistry(cfg.Room.StartingBalance, logger)
	store := room.NewStore(cfg.Room, logger)
	fanout := relay.NewBroadcaster(registry, logger)
	dispatcher := relay.NewDispatcher(store, registry, fanout, logger)
	acceptor := ws.NewAcceptor(cfg.WebSocket, registry, dispatcher, logger)

	srv := httptest.NewServer(acceptor)
	t.Cleanup(srv.Close)
	return srv
}

func TestConnectHandshake(t *testing.T) {
	srv := newTestServer(t)
	client := testutil.NewWSClient(t, srv.URL, "/")

	ack := client.ReadMethod("connect", frameTimeout)
	token, ok := ack["clientId"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	theClient, ok := ack["theClient"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, token, theClient["clientId"])
}

func TestCreateJoinRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	alice := testutil.NewWSClient(t, srv.URL, "/")
	bob := testutil.NewWSClient(t, srv.URL, "/")

	alice.ReadMethod("connect", frameTimeout)
	bob.ReadMethod("connect", frameTimeout)

	alice.Send(testutil.Frame("create", nil))
	ack := alice.ReadMethod("create", frameTimeout)
	roomID, ok := ack["roomId"].(string)
	require.True(t, ok)
	require.Len(t, roomID, 6)

	alice.Send(testutil.Frame("join", map[string]any{"gameId": roomID, "nickname": "alice"}))
	alice.ReadMethod("join", frameTimeout)

	bob.Send(testutil.Frame("join", map[string]any{"gameId": roomID, "nickname": "bob"}))
	joined := bob.ReadMethod("join", frameTimeout)

	spectators, ok := joined["spectators"].([]any)
	require.True(t, ok)
	assert.Len(t, spectators, 2)

	// Alice heard about bob too.
	second := alice.ReadMethod("join", frameTimeout)
	assert.Len(t, second["spectators"].([]any), 2)
}

func TestSeatGrabVisibleToRoom(t *testing.T) {
	srv := newTestServer(t)
	alice := testutil.NewWSClient(t, srv.URL, "/")
	bob := testutil.NewWSClient(t, srv.URL, "/")

	aliceToken, _ := alice.ReadMethod("connect", frameTimeout)["clientId"].(string)
	bob.ReadMethod("connect", frameTimeout)

	alice.Send(testutil.Frame("create", nil))
	roomID := alice.ReadMethod("create", frameTimeout)["roomId"].(string)

	alice.Send(testutil.Frame("join", map[string]any{"gameId": roomID, "nickname": "alice"}))
	bob.Send(testutil.Frame("join", map[string]any{"gameId": roomID, "nickname": "bob"}))
	alice.Send(testutil.Frame("joinTable", map[string]any{"gameId": roomID, "theSlot": 0}))

	seated := bob.ReadMethod("joinTable", frameTimeout)
	assert.Equal(t, float64(0), seated["theSlot"])

	seats, ok := seated["playerSlotHTML"].([]any)
	require.True(t, ok)
	assert.Equal(t, aliceToken, seats[0])
}

func TestMalformedFrameDropsConnection(t *testing.T) {
	srv := newTestServer(t)
	client := testutil.NewWSClient(t, srv.URL, "/")

	client.ReadMethod("connect", frameTimeout)
	client.SendRaw([]byte(`{not json`))
	client.ExpectClosed(frameTimeout)
}

func TestDisconnectBroadcastsLeave(t *testing.T) {
	srv := newTestServer(t)
	alice := testutil.NewWSClient(t, srv.URL, "/")
	bob := testutil.NewWSClient(t, srv.URL, "/")

	alice.ReadMethod("connect", frameTimeout)
	bob.ReadMethod("connect", frameTimeout)

	alice.Send(testutil.Frame("create", nil))
	roomID := alice.ReadMethod("create", frameTimeout)["roomId"].(string)

	alice.Send(testutil.Frame("join", map[string]any{"gameId": roomID, "nickname": "alice"}))
	bob.Send(testutil.Frame("join", map[string]any{"gameId": roomID, "nickname": "bob"}))
	bob.ReadMethod("join", frameTimeout)

	alice.Close()

	left := bob.ReadMethod("leave", frameTimeout)
	spectators, ok := left["spectators"].([]any)
	require.True(t, ok)
	assert.Len(t, spectators, 1)
}

func TestUnknownRoomJoinSurfacesError(t *testing.T) {
	srv := newTestServer(t)
	client := testutil.NewWSClient(t, srv.URL, "/")

	client.ReadMethod("connect", frameTimeout)
	client.Send(testutil.Frame("join", map[string]any{"gameId": "NOROOM", "nickname": "alice"}))

	errFrame := client.ReadMethod("error", frameTimeout)
	assert.Contains(t, errFrame["message"], "NOROOM")
}
