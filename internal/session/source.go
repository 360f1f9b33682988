package session

import (
	"context"
	"fmt"

	"github.com/ledgervoice/ledgervoice/pkg/audio"
)

// Attach connects a recording source to the session and pumps its frames into
// the pipeline until the stream ends or ctx is cancelled. Frames that arrive
// in a different format than cfg requests are converted before entering the
// detector, so a source that ignores the requested format still works.
//
// Attach blocks for the lifetime of the stream; run it on its own goroutine
// when the caller also drives the session. The source is stopped before
// Attach returns.
func (c *Controller) Attach(ctx context.Context, src audio.Source, cfg audio.StreamConfig) error {
	frames, err := src.StartStream(ctx, cfg)
	if err != nil {
		return fmt.Errorf("session: starting audio source: %w", err)
	}
	defer func() {
		if err := src.Stop(); err != nil {
			c.logger.Warn("stopping audio source", "error", err)
		}
	}()

	converted := audio.ConvertStream(frames, audio.Format{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-converted:
			if !ok {
				return nil
			}
			c.ProcessFrame(f)
		}
	}
}
