package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VoidMesh/worldstream/internal/testutil"
	"github.com/VoidMesh/worldstream/services/biome"
	"github.com/VoidMesh/worldstream/services/chunk"
	"github.com/VoidMesh/worldstream/services/residency"
	"github.com/VoidMesh/worldstream/services/spatial"
	"github.com/VoidMesh/worldstream/services/world"
)

func dialEvents(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) EventMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg EventMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestEventHub_StreamsResidencyEvents(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	params := chunk.DefaultParams()
	params.Resolution = 4
	e := world.New(context.Background(), world.Options{Params: params, Radius: 1})
	defer e.Close()

	hub := NewEventHub()
	defer hub.Close()
	e.AddListener(hub)

	server := httptest.NewServer(SetupRoutes(NewHandler(e, nil, hub), 0))
	defer server.Close()

	conn := dialEvents(t, server)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 5*time.Millisecond)

	_, err := e.UpdateAnchor(0, 0)
	require.NoError(t, err)

	var loaded []spatial.Coord
	for i := 0; i < 9; i++ {
		msg := readEvent(t, conn)
		assert.Equal(t, "loaded", msg.Type)
		assert.Equal(t, msg.Coord.Key(), msg.Key)
		require.NotNil(t, msg.Biome)
		loaded = append(loaded, msg.Coord)
	}
	assert.Equal(t, spatial.Window(spatial.Coord{}, 1), loaded)

	// One chunk north: unloads arrive before loads.
	_, err = e.UpdateAnchor(0, -float64(params.Resolution))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		msg := readEvent(t, conn)
		assert.Equal(t, "unloaded", msg.Type)
		assert.Nil(t, msg.Biome)
		assert.Equal(t, int32(1), msg.Coord.Z)
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, "loaded", readEvent(t, conn).Type)
	}
}

func TestEventHub_ClientDisconnect(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	hub := NewEventHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	conn := dialEvents(t, server)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 5*time.Second, 5*time.Millisecond)

	// Broadcasting with nobody listening is a no-op.
	hub.ChunkLoaded(residency.LoadedEvent{Coord: spatial.Coord{X: 1}, Key: spatial.Encode(1, 0), Biome: biome.Desert})
}

func TestEventHub_DropsSlowClients(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	hub := NewEventHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	dialEvents(t, server)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 5*time.Millisecond)

	// The client never reads, so the send buffer and socket eventually fill.
	require.Eventually(t, func() bool {
		for i := 0; i < sendBuffer; i++ {
			hub.ChunkUnloaded(residency.UnloadedEvent{Coord: spatial.Coord{X: int32(i)}, Key: uint64(i)})
		}
		return hub.Clients() == 0
	}, 10*time.Second, time.Millisecond)
}

func TestEventHub_CloseRefusesClients(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	hub := NewEventHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	conn := dialEvents(t, server)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 5*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestStreamEvents_Disabled(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodGet, "/api/v1/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
