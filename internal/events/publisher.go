// Package events fans book-added notifications out to live subscribers.
package events

import (
	"context"
	"errors"

	"bookgraph/pkg/models"
)

type Publisher interface {
	Publish(ctx context.Context, evt models.BookAdded) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt models.BookAdded) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Publish(context.Context, models.BookAdded) error { return nil }
