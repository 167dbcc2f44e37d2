package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/chatt-server/internal/metrics"
)

// Accept runs the admission handshake for a connection that claimed name:
// the name is reserved, the LoginResult is written, and on success the
// session is placed in the lobby. A rejected channel is closed.
func (r *Registry) Accept(ctx context.Context, name string, ch Channel) (*Session, error) {
	s, err := r.Admit(name, ch)
	if err != nil {
		r.metrics.Admission(metrics.AdmissionRejected)
		if sendErr := ch.Send(ctx, LoginRejected(ErrorCode(err))); sendErr != nil {
			r.log.Debug().Err(sendErr).Str("user", name).Msg("send login rejection")
		}
		if closeErr := ch.Close(); closeErr != nil {
			r.log.Debug().Err(closeErr).Str("user", name).Msg("close rejected channel")
		}
		r.log.Info().Err(err).Str("user", name).Msg("admission rejected")
		return nil, err
	}

	if err := s.Send(ctx, LoginResult(true)); err != nil {
		r.Release(s)
		_ = s.Close()
		return nil, fmt.Errorf("send login result: %w", err)
	}
	if _, err := r.Place(ctx, s); err != nil {
		r.Disconnect(ctx, s, "disconnected")
		return nil, err
	}

	r.metrics.Admission(metrics.AdmissionAccepted)
	r.log.Info().Str("session_id", s.ID()).Str("user", s.Name()).Msg("session admitted")
	return s, nil
}

// Serve is the Connection Loop for s. It reads commands and applies them to
// whichever room owns s at the time of each read, until the client
// disconnects or the channel fails. Cleanup always runs before it returns.
func (r *Registry) Serve(ctx context.Context, s *Session) error {
	log := r.log.With().Str("session_id", s.ID()).Str("user", s.Name()).Logger()

	for {
		cmd, err := s.Receive(ctx)
		if err != nil {
			r.Disconnect(ctx, s, "disconnected")
			switch {
			case errors.Is(err, ErrCorruptStream):
				log.Warn().Err(err).Msg("connection corrupted")
				return err
			case errors.Is(err, ErrChannelClosed), errors.Is(err, context.Canceled):
				log.Info().Err(err).Msg("connection lost")
				return nil
			default:
				log.Error().Err(err).Msg("unexpected receive failure")
				return err
			}
		}

		if !cmd.Kind.RoomBound() {
			log.Warn().Stringer("kind", cmd.Kind).Msg("dropping client-bound command")
			continue
		}

		room := r.RoomOf(s)
		if room == nil {
			r.Disconnect(ctx, s, "disconnected")
			log.Info().Msg("session no longer placed")
			return nil
		}

		// The sender is always the connection's own identity.
		cmd.User = s.Name()

		if err := cmd.ApplyToRoom(ctx, room); err != nil {
			switch {
			case errors.Is(err, ErrNoSuchMember), errors.Is(err, ErrNoSuchRoom):
				log.Warn().Err(err).Stringer("kind", cmd.Kind).Msg("command dropped")
			default:
				r.Disconnect(ctx, s, "disconnected")
				log.Error().Err(err).Stringer("kind", cmd.Kind).Msg("command failed")
				return err
			}
		}

		if cmd.Kind == CommandDisconnect {
			r.Disconnect(ctx, s, "disconnected")
			log.Info().Msg("client disconnected")
			return nil
		}
	}
}
