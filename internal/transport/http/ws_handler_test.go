package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatt-server/internal/config"
	"github.com/vovakirdan/chatt-server/internal/core"
	"github.com/vovakirdan/chatt-server/internal/proto"
)

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	env := proto.Envelope{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal %s: %v", typ, err)
		}
		env.Data = raw
	}
	if err := wsjson.Write(ctx, conn, env); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips frames until one of type typ arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) proto.Envelope {
	t.Helper()
	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if env.Type == typ {
			return env
		}
	}
}

func login(t *testing.T, ctx context.Context, wsURL, user string) (*websocket.Conn, proto.LoginData) {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", user, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	hello, err := proto.Hello(user)
	if err != nil {
		t.Fatalf("hello: %v", err)
	}
	if err := wsjson.Write(ctx, conn, hello); err != nil {
		t.Fatalf("send hello: %v", err)
	}

	var result proto.LoginData
	env := readUntil(t, ctx, conn, proto.TypeLogin)
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	return conn, result
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketHelloAndMessage(t *testing.T) {
	ts, _ := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA, result := login(t, ctx, wsURL, "alice")
	if !result.Accepted {
		t.Fatalf("alice rejected: %+v", result)
	}
	readUntil(t, ctx, connA, proto.TypeRoomName)

	connB, result := login(t, ctx, wsURL, "bob")
	if !result.Accepted {
		t.Fatalf("bob rejected: %+v", result)
	}
	readUntil(t, ctx, connB, proto.TypeRoomName)

	sendFrame(t, ctx, connA, proto.TypeSend, proto.SendData{Text: "hi there"})

	for {
		var msg proto.MessageData
		env := readUntil(t, ctx, connB, proto.TypeMessage)
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			t.Fatalf("unmarshal message: %v", err)
		}
		if msg.System {
			continue
		}
		if msg.User != "alice" || msg.Text != "hi there" || msg.Action {
			t.Fatalf("unexpected message: %+v", msg)
		}
		break
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	ts, registry := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, result := login(t, ctx, wsURL, "alice"); !result.Accepted {
		t.Fatalf("alice rejected: %+v", result)
	}

	_, result := login(t, ctx, wsURL, "Alice")
	if result.Accepted || result.Reason != core.ErrCodeNameTaken {
		t.Fatalf("expected name_taken rejection, got %+v", result)
	}
	if !registry.Claimed("ALICE") {
		t.Fatal("original session should keep the name")
	}
}

func TestProtocolVersionMismatch(t *testing.T) {
	ts, _ := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	sendFrame(t, ctx, conn, proto.TypeHello, proto.HelloData{User: "alice", Protocol: proto.ProtocolVersion + 1})

	var result proto.LoginData
	env := readUntil(t, ctx, conn, proto.TypeLogin)
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if result.Accepted || result.Reason != reasonUnsupportedVersion {
		t.Fatalf("expected unsupported version rejection, got %+v", result)
	}
}

func TestCreateRoomOverWebSocket(t *testing.T) {
	ts, registry := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := login(t, ctx, wsURL, "carol")
	readUntil(t, ctx, conn, proto.TypeRoomName)

	sendFrame(t, ctx, conn, proto.TypeCreateRoom, proto.CreateRoomData{Name: "lounge"})

	var name proto.RoomNameData
	env := readUntil(t, ctx, conn, proto.TypeRoomName)
	if err := json.Unmarshal(env.Data, &name); err != nil {
		t.Fatalf("unmarshal room name: %v", err)
	}
	if name.Name != "lounge" {
		t.Fatalf("expected lounge, got %q", name.Name)
	}

	directory := registry.RoomDirectory()
	if len(directory) != 2 || directory[1].Name != "lounge" || directory[1].Members != 1 {
		t.Fatalf("unexpected directory: %+v", directory)
	}
}

func TestRateLimitDropsExcessFrames(t *testing.T) {
	cfg := config.Default()
	cfg.MessagesPerSecond = 0.001
	cfg.MessageBurst = 2
	ts, _ := startTestServerWithConfig(t, cfg)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := login(t, ctx, wsURL, "erin")
	readUntil(t, ctx, conn, proto.TypeRooms)

	for _, text := range []string{"one", "two", "three"} {
		sendFrame(t, ctx, conn, proto.TypeSend, proto.SendData{Text: text})
	}

	var got []string
	for len(got) < 2 {
		var msg proto.MessageData
		env := readUntil(t, ctx, conn, proto.TypeMessage)
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			t.Fatalf("unmarshal message: %v", err)
		}
		if !msg.System {
			got = append(got, msg.Text)
		}
	}
	if got[0] != "one" || got[1] != "two" {
		t.Fatalf("unexpected messages %v", got)
	}

	// The third frame exceeded the burst and must never arrive.
	quiet, stop := context.WithTimeout(ctx, 200*time.Millisecond)
	defer stop()
	var env proto.Envelope
	if err := wsjson.Read(quiet, conn, &env); err == nil && env.Type == proto.TypeMessage {
		t.Fatalf("expected the third frame to be dropped, got %s", env.Data)
	}
}

func startTestServer(t *testing.T) (*httptest.Server, *core.Registry) {
	t.Helper()
	return startTestServerWithConfig(t, config.Default())
}

func startTestServerWithConfig(t *testing.T, cfg config.Config) (*httptest.Server, *core.Registry) {
	t.Helper()

	registry := core.NewRegistry(core.Options{WriteTimeout: time.Second})
	registry.CreateRoom(context.Background(), "apple room")

	logger := zerolog.Nop()

	server := NewServer(registry, nil, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(registry.Close)

	return ts, registry
}
