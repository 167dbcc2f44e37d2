package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/chatt-server/internal/core"
	"github.com/vovakirdan/chatt-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:9001/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "display name")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
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

	term := &terminal{}
	fmt.Printf("Connecting to %s as %s\n", *addr, *user)
	fmt.Println("Commands: /join <id>, /create <name>, /room, /quit. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn, term)
	}()

	writeLoop(ctx, conn)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

// terminal renders pushes from the server.
type terminal struct{}

func (t *terminal) OnMessage(msg core.Message) {
	fmt.Println(msg.String())
}

func (t *terminal) OnRoomDirectory(rooms []core.RoomSummary) {
	parts := make([]string, 0, len(rooms))
	for _, r := range rooms {
		parts = append(parts, fmt.Sprintf("%d:%s(%d)", r.ID, r.Name, r.Members))
	}
	fmt.Printf("rooms: %s\n", strings.Join(parts, " "))
}

func (t *terminal) OnRoomName(name string) {
	fmt.Printf("-- you are in %s --\n", name)
}

func (t *terminal) OnLoginResult(accepted bool) {
	if accepted {
		fmt.Println("logged in")
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, view core.ClientView) {
	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		cmd, err := proto.DecodeOutbound(env)
		if err != nil {
			log.Printf("decode %s: %v", env.Type, err)
			continue
		}
		if err := cmd.ApplyToClient(view); err != nil {
			log.Print(err)
			continue
		}
		if cmd.Kind == core.CommandLoginResult && !cmd.Accepted {
			log.Printf("login rejected: %s", cmd.Reason)
			return
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			cmd, ok := parseLine(line)
			if !ok {
				continue
			}
			env, err := proto.Encode(cmd)
			if err != nil {
				log.Printf("encode: %v", err)
				continue
			}
			if err := wsjson.Write(ctx, conn, env); err != nil {
				log.Printf("send: %v", err)
				return
			}
			if cmd.Kind == core.CommandDisconnect {
				return
			}
		}
	}
}

// parseLine maps an input line to a command. Anything that is not a
// recognised slash command is sent as chat text, "/me" included.
func parseLine(line string) (core.Command, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return core.Command{}, false
	}

	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch verb {
	case "/join":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			fmt.Println("usage: /join <room id>")
			return core.Command{}, false
		}
		return core.SwitchRoom("", id), true
	case "/create":
		return core.CreateRoom("", arg), true
	case "/room":
		return core.RequestRoomName(""), true
	case "/quit":
		return core.Disconnect(""), true
	default:
		return core.SendMessage("", line), true
	}
}
