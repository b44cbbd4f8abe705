package events

import (
	"context"

	"go.uber.org/zap"
)

// Notifier logs engine events as they happen. It is the audit trail the bot
// writes regardless of which directives the transport ends up delivering.
type Notifier struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewNotifier creates the notifier.
func NewNotifier(dispatcher Dispatcher, logger *zap.Logger) *Notifier {
	return &Notifier{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *Notifier) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(EventTicketCreated, n.handle)
	n.dispatcher.Subscribe(EventTicketResolved, n.handle)
	n.dispatcher.Subscribe(EventReplySent, n.handle)
	n.dispatcher.Subscribe(EventUserBanned, n.handle)
	n.dispatcher.Subscribe(EventSettingToggled, n.handle)
}

func (n *Notifier) handle(ctx context.Context, event Event) error {
	n.logger.Info(string(event.Type),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("actor_id", event.ActorID),
		zap.Any("payload", event.Payload))
	return nil
}
