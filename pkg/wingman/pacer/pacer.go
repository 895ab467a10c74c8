// Package pacer delivers generated replies with human-like timing.
// Replies containing blank-line separators are split into paragraphs
// and each paragraph is sent as an independent message, preceded by an
// optional typing indicator and a delay proportional to its length.
package pacer

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// randomDelayCapMs bounds the random component of each delay.
	randomDelayCapMs = 2000

	// perRuneDelay emulates typing speed (~25 chars/second).
	perRuneDelay = 40 * time.Millisecond
)

// Sender is the outbound surface the pacer needs from the host channel.
type Sender interface {
	Send(ctx context.Context, to string, content string) error
	SendTyping(ctx context.Context, to string) error
}

// Pacer sends reply text through a Sender with human-like pacing.
type Pacer struct {
	sender Sender
	typing bool
	logger *slog.Logger

	// randMs returns a pseudo-random int in [0, n); injectable for tests.
	randMs func(n int) int

	// sleep waits for d or until ctx is canceled; injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Pacer delivering through sender. If typing is true a
// typing indicator precedes every part.
func New(sender Sender, typing bool, logger *slog.Logger) *Pacer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pacer{
		sender: sender,
		typing: typing,
		logger: logger.With("component", "pacer"),
		randMs: rand.Intn,
		sleep:  sleepContext,
	}
}

// Split breaks a reply into non-empty paragraphs on blank-line
// boundaries. A reply without blank lines is returned as a single part.
func Split(reply string) []string {
	normalized := strings.ReplaceAll(reply, "\r\n", "\n")
	var parts []string
	for _, p := range strings.Split(normalized, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Delay computes the pause before sending a part: a random component
// up to 2 s plus 40 ms per character of the part.
func (p *Pacer) Delay(part string) time.Duration {
	random := time.Duration(p.randMs(randomDelayCapMs)) * time.Millisecond
	return random + time.Duration(utf8.RuneCountInString(part))*perRuneDelay
}

// Deliver sends reply to the conversation, one paced message per
// paragraph. Delivery stops at the first send error. Each reply is
// consumed exactly once; Deliver does not retry parts.
func (p *Pacer) Deliver(ctx context.Context, to string, reply string) error {
	parts := Split(reply)

	for i, part := range parts {
		if p.typing {
			if err := p.sender.SendTyping(ctx, to); err != nil {
				p.logger.Debug("typing indicator failed", "chat_id", to, "error", err)
			}
		}

		delay := p.Delay(part)
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}

		if err := p.sender.Send(ctx, to, part); err != nil {
			return err
		}

		p.logger.Debug("part delivered",
			"chat_id", to,
			"part", i+1,
			"parts", len(parts),
			"delay_ms", delay.Milliseconds(),
			"chars", utf8.RuneCountInString(part),
		)
	}

	return nil
}

// sleepContext waits for d unless ctx is canceled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
