package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/model"
)

// hubServer is a minimal push endpoint: it upgrades, records the presented
// token, and holds the socket open until the test pushes frames or closes it.
type hubServer struct {
	*httptest.Server

	upgrades int64
	tokens   chan string
	conns    chan *websocket.Conn
}

func newHubServer(t *testing.T) *hubServer {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	hs := &hubServer{
		tokens: make(chan string, 16),
		conns:  make(chan *websocket.Conn, 16),
	}
	hs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt64(&hs.upgrades, 1)
		hs.tokens <- r.URL.Query().Get("access_token")
		hs.conns <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(hs.Close)
	return hs
}

func (hs *hubServer) wsURL() string {
	return "ws" + strings.TrimPrefix(hs.URL, "http")
}

func staticToken(token string) TokenSource {
	return func() (string, error) { return token, nil }
}

// stateRecorder forwards transitions to a channel so tests can wait for them.
func stateRecorder() (func(State), chan State) {
	ch := make(chan State, 32)
	return func(s State) { ch <- s }, ch
}

func waitForState(t *testing.T, ch chan State, want State) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-ch:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func TestStartConnectsAndAuthenticatesWithToken(t *testing.T) {
	hs := newHubServer(t)
	conn := NewConnection(hs.wsURL(), staticToken("secret-token"), NewRouter(zap.NewNop()), zap.NewNop())
	sub, states := stateRecorder()
	conn.OnStateChange(sub)

	conn.Start()
	defer conn.Stop()

	waitForState(t, states, StateConnected)
	assert.True(t, conn.IsConnected())

	select {
	case token := <-hs.tokens:
		assert.Equal(t, "secret-token", token)
	case <-time.After(time.Second):
		t.Fatal("server never saw the handshake")
	}
}

func TestStartIsIdempotentWhileActive(t *testing.T) {
	hs := newHubServer(t)
	conn := NewConnection(hs.wsURL(), staticToken("tok"), NewRouter(zap.NewNop()), zap.NewNop())
	sub, states := stateRecorder()
	conn.OnStateChange(sub)

	conn.Start()
	conn.Start()
	conn.Start()
	defer conn.Stop()

	waitForState(t, states, StateConnected)
	conn.Start()

	// Give any erroneous extra dial time to land before counting.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hs.upgrades),
		"repeated Start calls must share one underlying channel")
}

func TestStartWithoutTokenIsANoOp(t *testing.T) {
	conn := NewConnection("ws://localhost:1/hub", staticToken(""), NewRouter(zap.NewNop()), zap.NewNop())
	conn.Start()

	assert.Equal(t, StateNotStarted, conn.CurrentState())
	assert.False(t, conn.IsConnected())
}

func TestStopMovesToDisconnected(t *testing.T) {
	hs := newHubServer(t)
	conn := NewConnection(hs.wsURL(), staticToken("tok"), NewRouter(zap.NewNop()), zap.NewNop())
	sub, states := stateRecorder()
	conn.OnStateChange(sub)

	conn.Start()
	waitForState(t, states, StateConnected)

	conn.Stop()
	waitForState(t, states, StateDisconnected)
	assert.False(t, conn.IsConnected())
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	conn := NewConnection("ws://localhost:1/hub", staticToken("tok"), NewRouter(zap.NewNop()), zap.NewNop())
	assert.NotPanics(t, conn.Stop)
}

func TestReconnectsAfterServerDrop(t *testing.T) {
	hs := newHubServer(t)
	conn := NewConnection(hs.wsURL(), staticToken("tok"), NewRouter(zap.NewNop()), zap.NewNop())
	sub, states := stateRecorder()
	conn.OnStateChange(sub)

	conn.Start()
	defer conn.Stop()
	waitForState(t, states, StateConnected)

	// Kill the server side of the socket; the client must degrade and then
	// recover on its own.
	serverConn := <-hs.conns
	serverConn.Close()

	waitForState(t, states, StateReconnecting)
	waitForState(t, states, StateConnected)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&hs.upgrades), int64(2))
}

func TestIncomingFramesReachTheRouter(t *testing.T) {
	hs := newHubServer(t)
	router := NewRouter(zap.NewNop())

	received := make(chan model.NotificationMessage, 1)
	router.OnReceiveNotification(func(msg model.NotificationMessage) { received <- msg })

	conn := NewConnection(hs.wsURL(), staticToken("tok"), router, zap.NewNop())
	sub, states := stateRecorder()
	conn.OnStateChange(sub)
	conn.Start()
	defer conn.Stop()
	waitForState(t, states, StateConnected)

	serverConn := <-hs.conns
	frame := map[string]interface{}{
		"event": EventReceiveNotification,
		"data":  map[string]interface{}{"id": 9, "title": "Todo created", "type": 2},
	}
	require.NoError(t, serverConn.WriteJSON(frame))

	select {
	case msg := <-received:
		assert.Equal(t, int64(9), msg.ID)
		assert.Equal(t, "Todo created", msg.Title)
		assert.Equal(t, model.TypeTodoCreated, msg.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("pushed frame never reached the handler")
	}
}
