package app

import (
	"context"
	"errors"
	"fmt"

	"BookMentions/internal/ports"
)

// alertFanout delivers each alert to every channel and reports all failures.
type alertFanout []ports.Notifier

var _ ports.Notifier = alertFanout(nil)

func (f alertFanout) Alert(ctx context.Context, subject, body string) error {
	var errs []error
	for i, n := range f {
		if err := n.Alert(ctx, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
