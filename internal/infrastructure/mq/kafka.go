package mq

import (
	"fmt"

	"pointledger/internal/config"

	"github.com/IBM/sarama"
)

// KafkaProducer 积分事件生产者
type KafkaProducer struct {
	producer sarama.SyncProducer
}

// NewKafkaConfig 生产者配置：等待所有副本确认
func NewKafkaConfig() *sarama.Config {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3                    // 重试次数
	kafkaConfig.Producer.Return.Successes = true          // 返回成功消息
	return kafkaConfig
}

// NewKafkaProducer 连接 Kafka 并创建同步生产者
func NewKafkaProducer(cfg *config.KafkaConfig) (*KafkaProducer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewKafkaConfig())
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}
	return NewKafkaProducerWith(producer), nil
}

// NewKafkaProducerWith 包装已有的 SyncProducer
func NewKafkaProducerWith(producer sarama.SyncProducer) *KafkaProducer {
	return &KafkaProducer{producer: producer}
}

// Send 发送消息，同一用户的事件使用相同的 key，保证分区内有序
func (p *KafkaProducer) Send(topic, key string, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	_, _, err := p.producer.SendMessage(msg)
	return err
}

// Close 关闭生产者
func (p *KafkaProducer) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
