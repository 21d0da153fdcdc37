package aws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// MaxDelay is the longest per-message delay SQS accepts.
const MaxDelay = 15 * time.Minute

// Message attribute names set on every envelope.
const (
	AttrKind    = "kind"
	AttrOrderID = "order_id"
)

// Publisher wraps an SQS client and a queue URL.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewPublisher returns a Publisher bound to a queue URL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// FIFO reports whether the bound queue is a FIFO queue.
func (p *Publisher) FIFO() bool {
	return strings.HasSuffix(p.QueueURL, ".fifo")
}

// Send sends a JSON message body to the queue and returns the SQS message id.
// attributes are sent as String MessageAttributes. A positive delay hides the
// message for that long (rounded up to whole seconds, at most MaxDelay).
func (p *Publisher) Send(ctx context.Context, messageBody string, attributes map[string]string, delay time.Duration) (string, error) {
	return p.send(ctx, messageBody, attributes, delay, "", "")
}

// SendEnvelope sends env with its kind and order id as attributes. On a FIFO
// queue the order id is the message group, which keeps one order's messages
// in publish order, and the envelope id deduplicates retries.
func (p *Publisher) SendEnvelope(ctx context.Context, env messages.Envelope, delay time.Duration) (string, error) {
	body, err := env.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	attrs := map[string]string{AttrKind: string(env.Kind), AttrOrderID: env.OrderID}
	return p.send(ctx, string(body), attrs, delay, env.OrderID, env.ID)
}

// Publish sends each event as its own envelope, stopping at the first failure.
func (p *Publisher) Publish(ctx context.Context, events ...messages.Message) error {
	for _, e := range events {
		env, err := messages.NewEnvelope(e)
		if err != nil {
			return err
		}
		if _, err := p.SendEnvelope(ctx, env, 0); err != nil {
			return fmt.Errorf("publish %s: %w", env.Kind, err)
		}
	}
	return nil
}

func (p *Publisher) send(ctx context.Context, messageBody string, attributes map[string]string, delay time.Duration, groupID, dedupID string) (string, error) {
	if delay > MaxDelay {
		return "", fmt.Errorf("send message: delay %s exceeds %s", delay, MaxDelay)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &messageBody,
	}
	if p.FIFO() {
		if delay > 0 {
			return "", fmt.Errorf("send message: FIFO queue %s does not accept per-message delay", p.QueueURL)
		}
		if groupID == "" {
			groupID = "default"
		}
		input.MessageGroupId = awsString(groupID)
		if dedupID != "" {
			input.MessageDeduplicationId = awsString(dedupID)
		}
	} else if delay > 0 {
		input.DelaySeconds = int32((delay + time.Second - 1) / time.Second)
	}
	if len(attributes) > 0 {
		msgAttrs := map[string]sqstypes.MessageAttributeValue{}
		for k, v := range attributes {
			msgAttrs[k] = sqstypes.MessageAttributeValue{
				DataType:    awsString("String"),
				StringValue: awsString(v),
			}
		}
		input.MessageAttributes = msgAttrs
	}

	out, err := p.SQS.SendMessage(ctx, input)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	if out.MessageId == nil {
		return "", nil
	}
	return *out.MessageId, nil
}

// awsString helper
func awsString(s string) *string { return &s }
