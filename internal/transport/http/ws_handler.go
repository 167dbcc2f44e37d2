package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/chatt-server/internal/config"
	"github.com/vovakirdan/chatt-server/internal/core"
	"github.com/vovakirdan/chatt-server/internal/proto"
)

const (
	handshakeTimeout = 10 * time.Second

	reasonUnsupportedVersion = "unsupported_version"
)

var errUnsupportedVersion = errors.New("unsupported protocol version")

// WSHandler upgrades HTTP connections and hands them to the registry as
// sessions once the hello handshake names a user.
type WSHandler struct {
	registry        *core.Registry
	log             *zerolog.Logger
	maxMessageBytes int64
	perSecond       rate.Limit
	burst           int
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(registry *core.Registry, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	h := &WSHandler{
		registry:        registry,
		log:             logger,
		maxMessageBytes: cfg.MaxMessageBytes,
		perSecond:       rate.Inf,
		burst:           cfg.MessageBurst,
	}
	if cfg.MessagesPerSecond > 0 {
		h.perSecond = rate.Limit(cfg.MessagesPerSecond)
	}
	return h
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	logger := h.log.With().Str("remote", r.RemoteAddr).Logger()
	ch := newWSChannel(conn, rate.NewLimiter(h.perSecond, h.burst), logger)

	name, err := h.handshake(ctx, ch)
	if err != nil {
		logger.Warn().Err(err).Msg("ws handshake failed")
		status := websocket.StatusPolicyViolation
		if errors.Is(err, core.ErrChannelClosed) {
			status = websocket.StatusNormalClosure
		}
		conn.Close(status, "handshake failed")
		return
	}

	session, err := h.registry.Accept(ctx, name, ch)
	if err != nil {
		// Accept already answered and closed the channel.
		return
	}

	start := time.Now()
	if err := h.registry.Serve(ctx, session); err != nil {
		logger.Warn().Err(err).Str("user", session.Name()).Msg("ws session ended with error")
	}
	logger.Info().Str("user", session.Name()).Dur("elapsed", time.Since(start)).Msg("ws session closed")
}

// handshake waits for the hello frame and returns the claimed name. A client
// on a newer protocol is answered with a rejected login.
func (h *WSHandler) handshake(ctx context.Context, ch *wsChannel) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	env, err := ch.readEnvelope(ctx)
	if err != nil {
		return "", err
	}
	hello, err := proto.DecodeHello(env)
	if err != nil {
		return "", err
	}
	if hello.Protocol > proto.ProtocolVersion {
		if err := ch.Send(ctx, core.LoginRejected(reasonUnsupportedVersion)); err != nil {
			h.log.Debug().Err(err).Msg("send version rejection")
		}
		return "", fmt.Errorf("hello protocol %d: %w", hello.Protocol, errUnsupportedVersion)
	}
	return hello.User, nil
}
