package notify

import (
	"context"

	"go.uber.org/zap"
)

// BatchResponse reports per-token delivery counts for one dispatch.
type BatchResponse struct {
	SuccessCount int
	FailureCount int
}

// Sender dispatches one payload to many device tokens in a single call.
type Sender interface {
	SendMulticast(ctx context.Context, tokens []string, payload Payload) (BatchResponse, error)
}

// LogSender only logs dispatches. It is used when no push transport is configured.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendMulticast(_ context.Context, tokens []string, payload Payload) (BatchResponse, error) {
	s.log.Info("push dispatch (log only)",
		zap.Int("tokens", len(tokens)),
		zap.String("title", payload.Notification.Title),
		zap.String("activity_id", payload.Data["activityId"]))
	return BatchResponse{SuccessCount: len(tokens)}, nil
}
