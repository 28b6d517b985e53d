package mqtt

import (
	"context"
	"time"
)

// MessageSender publishes raw MySensors messages.
type MessageSender interface {
	SendMessage(m Message) bool
}

// Present sends the presentation steps in order. A step that fails is retried
// until it is accepted, so the controller never sees a later step without
// the earlier ones. Returns ctx.Err() if cancelled.
func Present(ctx context.Context, s MessageSender, steps []Message, pause time.Duration) error {
	for _, step := range steps {
		for !s.SendMessage(step) {
			if err := sleep(ctx, pause); err != nil {
				return err
			}
		}
		// Controllers drop back-to-back presentations.
		if err := sleep(ctx, pause); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
