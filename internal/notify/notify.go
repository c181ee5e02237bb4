// Package notify defines the outbound notification contract. Actual delivery
// (email, webhooks) is an external collaborator; the in-tree implementation
// records messages in the service log.
package notify

import (
	"context"
	"log/slog"
)

// Message is one outbound contact notification.
type Message struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notifier delivers contact messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the structured log instead of delivering
// them. It stands in wherever no real delivery backend is configured.
type LogNotifier struct {
	Log *slog.Logger
}

// Send implements Notifier.Send.
func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.Log.Info("contact message received",
		slog.String("name", msg.Name),
		slog.String("email", msg.Email),
		slog.String("subject", msg.Subject))
	return nil
}
