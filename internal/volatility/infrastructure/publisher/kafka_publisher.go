package publisher

import (
	"context"

	"github.com/wyfcoding/volatility/internal/volatility/domain"
	"github.com/wyfcoding/volatility/pkg/mq"
)

const (
	topicCalibrationCompleted = "volatility.calibration.completed"
	topicSurfaceComputed      = "volatility.surface.computed"
)

// KafkaEventPublisher 通过 Kafka 发布领域事件
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
}

func NewKafkaEventPublisher(producer *mq.KafkaProducer) domain.EventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

func (p *KafkaEventPublisher) PublishCalibrationCompleted(ctx context.Context, event *domain.CalibrationCompletedEvent) error {
	return p.producer.SendMessage(ctx, topicCalibrationCompleted, event.Symbol, event)
}

func (p *KafkaEventPublisher) PublishSurfaceComputed(ctx context.Context, event *domain.SurfaceComputedEvent) error {
	return p.producer.SendMessage(ctx, topicSurfaceComputed, event.Symbol, event)
}
