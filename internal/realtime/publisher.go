package realtime

import (
	"context"

	"github.com/noah-isme/loan-query-api/internal/models"
)

// Publisher receives change events.
type Publisher interface {
	Publish(ctx context.Context, event models.Event)
}

type multiPublisher []Publisher

// Multi fans an event out to every non-nil publisher in order.
func Multi(publishers ...Publisher) Publisher {
	out := make(multiPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m multiPublisher) Publish(ctx context.Context, event models.Event) {
	for _, p := range m {
		p.Publish(ctx, event)
	}
}
