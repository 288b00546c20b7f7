package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"activity-sync/internal/notify"
)

// PushRequest asks the downstream delivery service to send one multicast.
type PushRequest struct {
	Tokens       []string            `json:"tokens"`
	Notification notify.Notification `json:"notification"`
	Data         map[string]string   `json:"data"`
	RequestedAt  string              `json:"requested_at"`
}

// PushSender implements notify.Sender by publishing push requests. Delivery
// is asynchronous, so a successful publish counts every token as sent.
type PushSender struct {
	publisher  Publisher
	routingKey string
}

func NewPushSender(publisher Publisher, routingKey string) *PushSender {
	return &PushSender{publisher: publisher, routingKey: routingKey}
}

func (s *PushSender) SendMulticast(ctx context.Context, tokens []string, payload notify.Payload) (notify.BatchResponse, error) {
	req := PushRequest{
		Tokens:       tokens,
		Notification: payload.Notification,
		Data:         payload.Data,
		RequestedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.publisher.Publish(ctx, s.routingKey, req); err != nil {
		return notify.BatchResponse{FailureCount: len(tokens)}, fmt.Errorf("publish push request: %w", err)
	}
	return notify.BatchResponse{SuccessCount: len(tokens)}, nil
}

var _ notify.Sender = (*PushSender)(nil)
