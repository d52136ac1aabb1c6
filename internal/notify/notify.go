package notify

import (
	"context"
	"log/slog"
)

// Sender delivers an alert message to an external service.
type Sender interface {
	// Name identifies the transport for logging.
	Name() string
	// Send delivers a message.
	Send(ctx context.Context, message string) error
}

// Notifier fans an alert out to every configured sender. Delivery is
// best-effort: one transport failing never blocks the others.
type Notifier struct {
	senders []Sender
}

func New(senders ...Sender) *Notifier {
	return &Notifier{senders: senders}
}

// Add registers another sender.
func (n *Notifier) Add(s Sender) {
	n.senders = append(n.senders, s)
}

// Notify sends message on every transport, logging failures.
func (n *Notifier) Notify(ctx context.Context, message string) {
	for _, s := range n.senders {
		if err := s.Send(ctx, message); err != nil {
			slog.Warn("alert delivery failed", "sender", s.Name(), "err", err)
		}
	}
}
