package mq

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaProducer_Send(t *testing.T) {
	mock := mocks.NewSyncProducer(t, NewKafkaConfig())
	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "point_event" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "1" {
			return errors.New("unexpected key " + string(key))
		}
		return nil
	})

	producer := NewKafkaProducerWith(mock)
	require.NoError(t, producer.Send("point_event", "1", []byte(`{"user_id":1}`)))
	require.NoError(t, producer.Close())
}

func TestKafkaProducer_SendFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, NewKafkaConfig())
	mock.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	producer := NewKafkaProducerWith(mock)
	err := producer.Send("point_event", "1", []byte("{}"))
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, producer.Close())
}
