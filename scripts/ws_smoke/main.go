package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/chatt-server/internal/core"
	"github.com/vovakirdan/chatt-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("ws_smoke: %v", err)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:9001/ws", "WebSocket address")
	user := flag.String("user", "tester", "display name to announce with hello")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	hello, err := proto.Hello(*user)
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, hello); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	sent := false
	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received: type=%s data=%s\n", env.Type, string(env.Data))

		cmd, err := proto.DecodeOutbound(env)
		if err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}

		switch cmd.Kind {
		case core.CommandLoginResult:
			if !cmd.Accepted {
				return fmt.Errorf("login rejected: %s", cmd.Reason)
			}
		case core.CommandRoomNamePush:
			if sent {
				continue
			}
			out, err := proto.Encode(core.SendMessage("", *text))
			if err != nil {
				return err
			}
			if err := wsjson.Write(ctx, conn, out); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
			sent = true
		case core.CommandMessagePush:
			if cmd.Message.Sender == *user && cmd.Message.Text == *text {
				fmt.Printf("Echo: %s\n", cmd.Message.String())
				return nil
			}
		}
	}
}
