package core

import (
	"context"

	"go.uber.org/zap"
)

// Notifier is the outbound notification gateway. Delivery is an external
// collaborator: the engine never formats messages or guarantees delivery,
// and a failing notifier must never affect the transaction that triggered it.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// LogNotifier is the default gateway: it logs the signal and does nothing
// else. Deployments plug a real chat-bot gateway behind the same interface.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, e Event) error {
	zap.S().Infow("notification", "event", e.Name(), "payload", e)
	return nil
}

// SubscribeNotifier wires a notifier to every collaborator-facing signal.
// Gateway errors are logged and swallowed, fire-and-forget.
func SubscribeNotifier(bus *Bus, n Notifier) {
	deliver := func(ctx context.Context, e Event) {
		if err := n.Notify(ctx, e); err != nil {
			zap.S().Warnw("notification delivery failed",
				"event", e.Name(),
				"error", err,
			)
		}
	}
	for _, name := range []string{
		OrderReady{}.Name(),
		OrderApproved{}.Name(),
		OrderRejected{}.Name(),
		VehicleDelivered{}.Name(),
	} {
		bus.Subscribe(name, deliver)
	}
}
