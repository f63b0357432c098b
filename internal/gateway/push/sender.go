package push

import (
	"context"

	"service-dispatch/internal/logx"
)

// Outcome reports how a multi-token delivery went. Delivery counts as
// successful when at least one token succeeded on either provider; total
// provider outage is reported explicitly, never swallowed.
type Outcome int

// List of delivery outcomes
const (
	NoTokens Outcome = iota
	Delivered
	AllProvidersFailed
)

type counter interface {
	Inc()
}

// Sender fans one message out to all of a user's tokens, retrying each
// failed token on the secondary provider.
type Sender struct {
	primary   Provider
	secondary Provider
	logger    logx.Logger
	fallbacks counter
	failures  counter
}

// NewSender creates a Sender. secondary may be nil.
func NewSender(primary, secondary Provider, logger logx.Logger, fallbacks, failures counter) *Sender {
	return &Sender{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
		fallbacks: fallbacks,
		failures:  failures,
	}
}

// Send delivers msg to every token. One success on any provider makes the
// whole delivery Delivered.
func (s *Sender) Send(ctx context.Context, tokens []string, msg Message) Outcome {
	if len(tokens) == 0 {
		return NoTokens
	}

	delivered := false
	for _, token := range tokens {
		if s.sendOne(ctx, token, msg) {
			delivered = true
		}
	}
	if !delivered {
		if s.failures != nil {
			s.failures.Inc()
		}
		s.logger.Error("push delivery failed on all providers",
			logx.String("event", msg.Event),
			logx.Int("tokens", len(tokens)),
		)
		return AllProvidersFailed
	}
	return Delivered
}

func (s *Sender) sendOne(ctx context.Context, token string, msg Message) bool {
	if s.primary != nil {
		err := s.primary.Send(ctx, token, msg)
		if err == nil {
			return true
		}
		s.logger.Warn("primary push provider failed",
			logx.String("event", msg.Event),
			logx.Any("err", err),
		)
	}

	if s.secondary == nil {
		return false
	}
	if s.fallbacks != nil {
		s.fallbacks.Inc()
	}
	if err := s.secondary.Send(ctx, token, msg); err != nil {
		s.logger.Warn("secondary push provider failed",
			logx.String("event", msg.Event),
			logx.Any("err", err),
		)
		return false
	}
	return true
}
