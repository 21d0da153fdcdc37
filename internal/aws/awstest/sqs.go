package awstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQS records every SendMessage call.
type SQS struct {
	mu   sync.Mutex
	sent []*sqs.SendMessageInput

	// Err, when set, fails every send.
	Err error
}

func (s *SQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.sent = append(s.sent, params)
	id := fmt.Sprintf("msg-%d", len(s.sent))
	return &sqs.SendMessageOutput{MessageId: &id}, nil
}

// Sent returns the inputs sent to queueURL, in order. An empty queueURL returns all.
func (s *SQS) Sent(queueURL string) []*sqs.SendMessageInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*sqs.SendMessageInput
	for _, in := range s.sent {
		if queueURL == "" || *in.QueueUrl == queueURL {
			out = append(out, in)
		}
	}
	return out
}
