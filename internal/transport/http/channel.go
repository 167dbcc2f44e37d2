package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/chatt-server/internal/core"
	"github.com/vovakirdan/chatt-server/internal/proto"
)

// wsChannel adapts a websocket connection to core.Channel. Frames are JSON
// envelopes; inbound frames over the rate limit are dropped.
type wsChannel struct {
	conn    *websocket.Conn
	limiter *rate.Limiter
	log     zerolog.Logger
}

func newWSChannel(conn *websocket.Conn, limiter *rate.Limiter, logger zerolog.Logger) *wsChannel {
	return &wsChannel{conn: conn, limiter: limiter, log: logger}
}

// Send encodes cmd and writes it as a single text frame.
func (c *wsChannel) Send(ctx context.Context, cmd core.Command) error {
	env, err := proto.Encode(cmd)
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, c.conn, env); err != nil {
		return fmt.Errorf("write %s: %w: %w", env.Type, core.ErrChannelClosed, err)
	}
	return nil
}

// Receive returns the next room-bound command from the client.
func (c *wsChannel) Receive(ctx context.Context) (core.Command, error) {
	for {
		env, err := c.readEnvelope(ctx)
		if err != nil {
			return core.Command{}, err
		}
		if c.limiter != nil && !c.limiter.Allow() {
			c.log.Warn().Str("type", env.Type).Msg("rate limit exceeded, frame dropped")
			continue
		}
		return proto.DecodeInbound(env)
	}
}

func (c *wsChannel) readEnvelope(ctx context.Context) (proto.Envelope, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return proto.Envelope{}, err
		}
		return proto.Envelope{}, fmt.Errorf("read frame: %w: %w", core.ErrChannelClosed, err)
	}
	if typ != websocket.MessageText {
		return proto.Envelope{}, fmt.Errorf("read frame: unexpected %s frame: %w", typ, core.ErrCorruptStream)
	}

	var env proto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return proto.Envelope{}, fmt.Errorf("read frame: %v: %w", err, core.ErrCorruptStream)
	}
	return env, nil
}

// Close performs a normal websocket close.
func (c *wsChannel) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
