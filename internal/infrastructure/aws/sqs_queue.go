package aws

import (
	"context"
	"fmt"
	"strconv"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"BookMentions/internal/domain"
	"BookMentions/internal/ports"
)

// SQSAPI is the subset of the SQS client the queue uses.
type SQSAPI interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, opts ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	GetQueueAttributes(ctx context.Context, in *sqs.GetQueueAttributesInput, opts ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, opts ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// SQSQueue is a managed FIFO queue.
type SQSQueue struct {
	api      SQSAPI
	name     string
	url      string
	waitTime int32
}

var _ ports.Queue = (*SQSQueue)(nil)

// NewSQSQueue resolves the queue URL by name. waitSeconds enables long
// polling on receive.
func NewSQSQueue(ctx context.Context, api SQSAPI, name string, waitSeconds int32) (*SQSQueue, error) {
	out, err := api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: sdkaws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("get queue url %s: %w", name, err)
	}
	return &SQSQueue{api: api, name: name, url: sdkaws.ToString(out.QueueUrl), waitTime: waitSeconds}, nil
}

// Name returns the queue name.
func (q *SQSQueue) Name() string { return q.name }

// Depth returns the approximate number of visible messages.
func (q *SQSQueue) Depth(ctx context.Context) (int, error) {
	out, err := q.api.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       sdkaws.String(q.url),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return 0, fmt.Errorf("queue attributes %s: %w", q.name, err)
	}
	raw := out.Attributes[string(sqstypes.QueueAttributeNameApproximateNumberOfMessages)]
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse depth %q: %w", raw, err)
	}
	return n, nil
}

// Receive fetches up to max messages.
func (q *SQSQueue) Receive(ctx context.Context, max int) ([]domain.QueueMessage, error) {
	out, err := q.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            sdkaws.String(q.url),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     q.waitTime,
	})
	if err != nil {
		return nil, fmt.Errorf("receive %s: %w", q.name, err)
	}
	msgs := make([]domain.QueueMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, domain.QueueMessage{
			ID:      sdkaws.ToString(m.MessageId),
			Body:    sdkaws.ToString(m.Body),
			Receipt: sdkaws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

// Delete removes a processed message.
func (q *SQSQueue) Delete(ctx context.Context, msg domain.QueueMessage) error {
	_, err := q.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      sdkaws.String(q.url),
		ReceiptHandle: sdkaws.String(msg.Receipt),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrDeleteFailed, msg.ID, err)
	}
	return nil
}

// Release makes the message visible to the next receive.
func (q *SQSQueue) Release(ctx context.Context, msg domain.QueueMessage) error {
	_, err := q.api.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          sdkaws.String(q.url),
		ReceiptHandle:     sdkaws.String(msg.Receipt),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("release %s: %w", msg.ID, err)
	}
	return nil
}
