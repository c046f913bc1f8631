package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisherPublish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var decoded map[string]string
		if err := json.Unmarshal(val, &decoded); err != nil {
			return err
		}
		if decoded["tag"] != "approved" {
			return errors.New("unexpected tag " + decoded["tag"])
		}
		return nil
	})

	pub := NewKafkaPublisherWithProducer(producer, "transitions", nil)
	require.NoError(t, pub.Publish(context.Background(), "tx-1", map[string]string{"tag": "approved"}))
	require.NoError(t, pub.Close())
}

func TestKafkaPublisherSurfacesSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaPublisherWithProducer(producer, "transitions", nil)
	err := pub.Publish(context.Background(), "tx-1", map[string]string{"tag": "denied"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}

func TestKafkaPublisherHonoursCancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	pub := NewKafkaPublisherWithProducer(producer, "transitions", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.Publish(ctx, "tx-1", map[string]string{}), context.Canceled)
	require.NoError(t, pub.Close())
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "transitions", nil)
	assert.Error(t, err)
}
