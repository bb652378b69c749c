package domain

import "context"

// EventPublisher 领域事件发布端口
type EventPublisher interface {
	PublishCalibrationCompleted(ctx context.Context, event *CalibrationCompletedEvent) error
	PublishSurfaceComputed(ctx context.Context, event *SurfaceComputedEvent) error
}
