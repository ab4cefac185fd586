package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/devclip/clipsync/internal/domain"
	"github.com/devclip/clipsync/internal/infrastructure/cipher"
	"github.com/devclip/clipsync/internal/infrastructure/store"
	"github.com/devclip/clipsync/internal/service"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const readWait = 2 * time.Second

type wsHarness struct {
	sessions *service.SessionService
	server   *httptest.Server
}

func newWSHarness(t *testing.T) *wsHarness {
	t.Helper()

	logger := zap.NewNop().Sugar()
	sessions := service.NewSessionService(store.NewMemoryStore(), cipher.NewAESGCM(), domain.SessionTTL, logger)
	groups := NewGroupManager()
	core := NewCore(groups, sessions, logger)
	go core.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := groups.Upgrade(w, r)
		if err != nil {
			return
		}

		cl := NewClient(conn)
		go cl.WriteMessage()
		go cl.ReadMessage(core)
	}))
	t.Cleanup(server.Close)

	return &wsHarness{sessions: sessions, server: server}
}

func (h *wsHarness) newSession(t *testing.T) *service.ConnectResult {
	t.Helper()

	result, err := h.sessions.Connect(context.Background(), "")
	require.NoError(t, err)
	return result
}

func (h *wsHarness) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(h.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(inboundMessage{Type: eventType, Data: data}))
}

func join(t *testing.T, conn *websocket.Conn, code, key string) JoinedPayload {
	t.Helper()

	send(t, conn, JoinDevice, JoinPayload{DeviceCode: code, EncryptionKey: key})

	var joined JoinedPayload
	waitFor(t, conn, JoinedDevice, &joined)
	return joined
}

// waitFor reads frames until one of the wanted type arrives, skipping
// device connect/disconnect notices. An error frame fails the test.
func waitFor(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()

	for {
		env := readEnvelope(t, conn)

		switch env.Type {
		case eventType:
			if payload != nil {
				require.NoError(t, json.Unmarshal(env.Data, payload))
			}
			return
		case DeviceConnected, DeviceDisconnected:
			continue
		case ErrorEvent:
			var p ErrorPayload
			_ = json.Unmarshal(env.Data, &p)
			t.Fatalf("unexpected error frame while waiting for %q: %s", eventType, p.Message)
		default:
			t.Fatalf("unexpected %q frame while waiting for %q", env.Type, eventType)
		}
	}
}

func waitForError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	for {
		env := readEnvelope(t, conn)
		if env.Type == DeviceConnected || env.Type == DeviceDisconnected {
			continue
		}

		require.Equal(t, ErrorEvent, env.Type)
		var p ErrorPayload
		require.NoError(t, json.Unmarshal(env.Data, &p))
		return p.Message
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *inboundMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readWait)))

	var env inboundMessage
	require.NoError(t, conn.ReadJSON(&env))
	return &env
}

// expectNoFrames asserts nothing at all arrives within a short window,
// notices included.
func expectNoFrames(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))

	var env inboundMessage
	if err := conn.ReadJSON(&env); err == nil {
		t.Fatalf("expected no frames, got %q", env.Type)
	}
}

// expectSilence asserts no frame other than connect/disconnect notices
// arrives within a short window.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))

		var env inboundMessage
		err := conn.ReadJSON(&env)
		if err != nil {
			return
		}
		if env.Type == DeviceConnected || env.Type == DeviceDisconnected {
			continue
		}
		t.Fatalf("expected no frames, got %q", env.Type)
	}
}

func TestJoinDeliversCurrentClipboard(t *testing.T) {
	h := newWSHarness(t)
	session := h.newSession(t)

	_, _, err := h.sessions.Update(context.Background(), session.Code, session.SecretKey, "already here")
	require.NoError(t, err)

	conn := h.dial(t)
	joined := join(t, conn, session.Code, session.SecretKey)

	assert.Equal(t, session.Code, joined.DeviceCode)
	assert.Equal(t, "already here", joined.CurrentClipboard)
}

func TestUpdateFansOutToWholeGroup(t *testing.T) {
	h := newWSHarness(t)
	session := h.newSession(t)

	sender := h.dial(t)
	receiver := h.dial(t)
	join(t, sender, session.Code, session.SecretKey)
	join(t, receiver, session.Code, session.SecretKey)

	send(t, sender, UpdateClipboard, UpdatePayload{Text: "hello"})

	for _, conn := range []*websocket.Conn{sender, receiver} {
		var updated UpdatedPayload
		waitFor(t, conn, ClipboardUpdated, &updated)
		assert.Equal(t, "hello", updated.Text)

		_, err := time.Parse(time.RFC3339, updated.Timestamp)
		assert.NoError(t, err)
	}
}

func TestUpdateSanitizedBeforeBroadcast(t *testing.T) {
	h := newWSHarness(t)
	session := h.newSession(t)

	conn := h.dial(t)
	join(t, conn, session.Code, session.SecretKey)

	send(t, conn, UpdateClipboard, UpdatePayload{Text: `<script>alert('x')</script>`})

	var updated UpdatedPayload
	waitFor(t, conn, ClipboardUpdated, &updated)
	assert.Equal(t, "scriptalert(x)/script", updated.Text)
}

func TestUpdateDoesNotCrossGroups(t *testing.T) {
	h := newWSHarness(t)
	first := h.newSession(t)
	second := h.newSession(t)

	inFirst := h.dial(t)
	inSecond := h.dial(t)
	join(t, inFirst, first.Code, first.SecretKey)
	join(t, inSecond, second.Code, second.SecretKey)

	send(t, inFirst, UpdateClipboard, UpdatePayload{Text: "for group one only"})

	var updated UpdatedPayload
	waitFor(t, inFirst, ClipboardUpdated, &updated)
	expectSilence(t, inSecond)
}

func TestClearFansOut(t *testing.T) {
	h := newWSHarness(t)
	session := h.newSession(t)

	sender := h.dial(t)
	receiver := h.dial(t)
	join(t, sender, session.Code, session.SecretKey)
	join(t, receiver, session.Code, session.SecretKey)

	send(t, sender, UpdateClipboard, UpdatePayload{Text: "something"})
	for _, conn := range []*websocket.Conn{sender, receiver} {
		waitFor(t, conn, ClipboardUpdated, nil)
	}

	send(t, sender, ClearClipboard, struct{}{})
	for _, conn := range []*websocket.Conn{sender, receiver} {
		var cleared ClearedPayload
		waitFor(t, conn, ClipboardCleared, &cleared)
		assert.NotEmpty(t, cleared.Timestamp)
	}

	text, _, err := h.sessions.Read(context.Background(), session.Code)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestJoinWithWrongKeyIsRejected(t *testing.T) {
	h := newWSHarness(t)
	session := h.newSession(t)

	conn := h.dial(t)
	send(t, conn, JoinDevice, JoinPayload{DeviceCode: session.Code, EncryptionKey: "wrong"})
	assert.Equal(t, "Device not found or invalid key", waitForError(t, conn))

	// Rejected clients stay unbound, so mutations are refused too.
	send(t, conn, UpdateClipboard, UpdatePayload{Text: "sneaky"})
	assert.Equal(t, "Not connected to any device", waitForError(t, conn))
}

func TestJoinUnknownCodeMatchesWrongKey(t *testing.T) {
	h := newWSHarness(t)

	conn := h.dial(t)
	send(t, conn, JoinDevice, JoinPayload{DeviceCode: "999999", EncryptionKey: "whatever"})
	assert.Equal(t, "Device not found or invalid key", waitForError(t, conn))
}

func TestJoinInvalidCode(t *testing.T) {
	h := newWSHarness(t)

	conn := h.dial(t)
	send(t, conn, JoinDevice, JoinPayload{DeviceCode: "abc", EncryptionKey: "whatever"})
	assert.Equal(t, "Invalid device code", waitForError(t, conn))
}

func TestUpdateBeforeJoin(t *testing.T) {
	h := newWSHarness(t)

	conn := h.dial(t)
	send(t, conn, UpdateClipboard, UpdatePayload{Text: "hello"})
	assert.Equal(t, "Not connected to any device", waitForError(t, conn))
}

func TestUnsupportedEvent(t *testing.T) {
	h := newWSHarness(t)

	conn := h.dial(t)
	send(t, conn, "no-such-event", struct{}{})
	assert.Equal(t, "Unsupported event", waitForError(t, conn))
}

func TestJoinNotifiesExistingPeerOnly(t *testing.T) {
	h := newWSHarness(t)
	session := h.newSession(t)

	peer := h.dial(t)
	join(t, peer, session.Code, session.SecretKey)

	joiner := h.dial(t)
	join(t, joiner, session.Code, session.SecretKey)

	env := readEnvelope(t, peer)
	assert.Equal(t, DeviceConnected, env.Type)

	// Exactly one notice for the peer; the joiner never hears its own join.
	expectNoFrames(t, peer)
	expectNoFrames(t, joiner)
}

func TestDisconnectNotifiesRemainingPeer(t *testing.T) {
	h := newWSHarness(t)
	session := h.newSession(t)

	remaining := h.dial(t)
	join(t, remaining, session.Code, session.SecretKey)

	leaver := h.dial(t)
	join(t, leaver, session.Code, session.SecretKey)

	env := readEnvelope(t, remaining)
	require.Equal(t, DeviceConnected, env.Type)

	require.NoError(t, leaver.Close())

	env = readEnvelope(t, remaining)
	assert.Equal(t, DeviceDisconnected, env.Type)
}

func TestRejoinMovesClientBetweenGroups(t *testing.T) {
	h := newWSHarness(t)
	first := h.newSession(t)
	second := h.newSession(t)

	mover := h.dial(t)
	peer := h.dial(t)
	join(t, mover, first.Code, first.SecretKey)
	join(t, peer, first.Code, first.SecretKey)

	join(t, mover, second.Code, second.SecretKey)

	// The mover now only hears the second group.
	send(t, peer, UpdateClipboard, UpdatePayload{Text: "first group chatter"})
	waitFor(t, peer, ClipboardUpdated, nil)
	expectSilence(t, mover)
}
