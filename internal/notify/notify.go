// Package notify delivers alert emails and short operational messages.
package notify

import (
	"context"

	"go.uber.org/multierr"
)

// Notifier sends a short titled message (run health, summaries).
type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans a message out to every non-nil notifier and returns all
// failures combined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}
