// Package voice turns expressed utterances into sound by handing them to
// an external synthesizer process. Playback is strictly serialized and
// best-effort: a missing or failing synthesizer never disturbs the body.
package voice

import (
	"context"
	"log/slog"
	"os/exec"

	"somata/internal/config"
)

type Speaker struct {
	cfg    config.Voice
	logger *slog.Logger
	queue  chan string
}

func New(cfg config.Voice, logger *slog.Logger) *Speaker {
	size := cfg.Queue
	if size <= 0 {
		size = 1
	}
	return &Speaker{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan string, size),
	}
}

// Say enqueues an utterance without blocking. It reports whether the text
// was accepted; a full queue or a disabled speaker drops it.
func (s *Speaker) Say(text string) bool {
	if !s.cfg.Enabled || text == "" {
		return false
	}
	select {
	case s.queue <- text:
		return true
	default:
		s.logger.Debug("voice queue full, utterance dropped")
		return false
	}
}

// Run drains the queue one utterance at a time until the context ends.
// The current playback finishes; queued ones are abandoned.
func (s *Speaker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-s.queue:
			s.play(ctx, text)
		}
	}
}

func (s *Speaker) play(ctx context.Context, text string) {
	args := append(append([]string(nil), s.cfg.Args...), text)
	cmd := exec.CommandContext(ctx, s.cfg.Command, args...)
	if err := cmd.Run(); err != nil && ctx.Err() == nil {
		s.logger.Debug("voice playback failed", "error", err)
	}
}

// Pending reports how many utterances wait in the queue.
func (s *Speaker) Pending() int { return len(s.queue) }
