package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/datashare-api/internal/models"
	"github.com/noah-isme/datashare-api/pkg/events"
)

// LogNotifier writes notices to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs the sink.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Name implements Notifier.
func (n *LogNotifier) Name() string { return "log" }

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, notice models.TransitionNotice) error {
	n.logger.Info("transition notification",
		zap.String("transaction_id", notice.TransactionID),
		zap.String("tag", string(notice.Tag)),
		zap.String("action", string(notice.Action)),
		zap.String("from", string(notice.FromStatus)),
		zap.String("to", string(notice.ToStatus)),
		zap.String("actor_org_id", notice.ActorOrgID),
	)
	return nil
}

// BrokerNotifier publishes notices to a message broker keyed by transaction id.
type BrokerNotifier struct {
	publisher events.Publisher
}

// NewBrokerNotifier constructs the sink.
func NewBrokerNotifier(publisher events.Publisher) *BrokerNotifier {
	return &BrokerNotifier{publisher: publisher}
}

// Name implements Notifier.
func (n *BrokerNotifier) Name() string { return "broker" }

// Notify implements Notifier.
func (n *BrokerNotifier) Notify(ctx context.Context, notice models.TransitionNotice) error {
	return n.publisher.Publish(ctx, notice.TransactionID, notice)
}

type topicPublisher interface {
	Publish(topic string, msg interface{}) (int, error)
}

// StreamNotifier pushes notices to websocket subscribers of the transaction.
type StreamNotifier struct {
	hub topicPublisher
}

// NewStreamNotifier constructs the sink.
func NewStreamNotifier(hub topicPublisher) *StreamNotifier {
	return &StreamNotifier{hub: hub}
}

// Name implements Notifier.
func (n *StreamNotifier) Name() string { return "stream" }

// Notify implements Notifier. Having no subscribers is not an error.
func (n *StreamNotifier) Notify(_ context.Context, notice models.TransitionNotice) error {
	_, err := n.hub.Publish(notice.TransactionID, notice)
	return err
}
