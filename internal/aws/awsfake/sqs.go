package awsfake

import (
	"context"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQS records every message sent.
type SQS struct {
	mu       sync.Mutex
	Messages []sqs.SendMessageInput
	Err      error

	// OnSend, when set, is called with each accepted message after it is recorded.
	OnSend func(in sqs.SendMessageInput)
}

func (q *SQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	if q.Err != nil {
		q.mu.Unlock()
		return nil, q.Err
	}
	q.Messages = append(q.Messages, *in)
	id := "msg-" + strconv.Itoa(len(q.Messages))
	hook := q.OnSend
	q.mu.Unlock()

	if hook != nil {
		hook(*in)
	}
	return &sqs.SendMessageOutput{MessageId: &id}, nil
}

// Bodies returns the bodies sent so far.
func (q *SQS) Bodies() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.Messages))
	for _, m := range q.Messages {
		if m.MessageBody != nil {
			out = append(out, *m.MessageBody)
		}
	}
	return out
}
