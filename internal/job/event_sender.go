package job

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"pointledger/internal/model"

	"go.uber.org/zap"
)

// Producer 消息发送方，Kafka 实现见 mq.KafkaProducer
type Producer interface {
	Send(topic, key string, value []byte) error
}

type pendingEvent struct {
	event      *model.PointEvent
	retryCount int
}

// EventSender 异步投递积分变动事件
//
// Publish 只往有界队列里放，队列满了直接丢弃并告警，不阻塞积分变更。
// 后台按固定间隔批量发送，失败的事件留到下一轮重试，超过最大重试次数后丢弃。
type EventSender struct {
	producer  Producer
	topic     string
	queue     chan *pendingEvent
	retrying  []*pendingEvent // 只在发送协程里访问
	maxRetry  int
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewEventSender(producer Producer, topic string, queueSize, maxRetry int, logger *zap.Logger) *EventSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if maxRetry <= 0 {
		maxRetry = 1
	}
	return &EventSender{
		producer:  producer,
		topic:     topic,
		queue:     make(chan *pendingEvent, queueSize),
		maxRetry:  maxRetry,
		interval:  100 * time.Millisecond,
		batchSize: 100,
		logger:    logger.Named("event_sender"),
		stopCh:    make(chan struct{}),
	}
}

// Publish 放入发送队列，不阻塞
func (s *EventSender) Publish(_ context.Context, event *model.PointEvent) {
	select {
	case s.queue <- &pendingEvent{event: event}:
	default:
		s.logger.Warn("事件队列已满，丢弃事件",
			zap.String("event_no", event.EventNo),
			zap.Int64("user_id", event.UserID))
	}
}

func (s *EventSender) Start(ctx context.Context) {
	s.logger.Info("事件发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("收到停止信号，发送剩余事件后退出")
			s.drain()
			return
		case <-s.stopCh:
			s.logger.Info("任务停止")
			s.drain()
			return
		case <-ticker.C:
			s.processPendingEvents()
		}
	}
}

func (s *EventSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// drain 退出前把队列和重试列表都发完，重试次数用完的事件照常丢弃
func (s *EventSender) drain() {
	for len(s.queue) > 0 || len(s.retrying) > 0 {
		s.processPendingEvents()
	}
	s.logger.Info("剩余事件已处理完")
}

func (s *EventSender) processPendingEvents() {
	batch := s.retrying
	s.retrying = nil
	for len(batch) < s.batchSize {
		p, ok := s.take()
		if !ok {
			break
		}
		batch = append(batch, p)
	}

	for _, p := range batch {
		s.sendEvent(p)
	}
}

func (s *EventSender) take() (*pendingEvent, bool) {
	select {
	case p := <-s.queue:
		return p, true
	default:
		return nil, false
	}
}

func (s *EventSender) sendEvent(p *pendingEvent) {
	payload, err := json.Marshal(p.event)
	if err != nil {
		s.logger.Error("事件序列化失败", zap.String("event_no", p.event.EventNo), zap.Error(err))
		return
	}

	err = s.producer.Send(s.topic, strconv.FormatInt(p.event.UserID, 10), payload)
	if err == nil {
		s.logger.Debug("事件发送成功", zap.String("event_no", p.event.EventNo), zap.String("topic", s.topic))
		return
	}

	p.retryCount++
	if p.retryCount >= s.maxRetry {
		s.logger.Error("事件超过最大重试次数，丢弃",
			zap.String("event_no", p.event.EventNo),
			zap.Int64("user_id", p.event.UserID),
			zap.Int("retry_count", p.retryCount),
			zap.Error(err))
		return
	}

	s.logger.Warn("事件发送失败，等待重试",
		zap.String("event_no", p.event.EventNo),
		zap.Int("retry_count", p.retryCount),
		zap.Error(err))
	s.retrying = append(s.retrying, p)
}
