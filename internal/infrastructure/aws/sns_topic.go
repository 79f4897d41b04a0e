package aws

import (
	"context"
	"fmt"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"BookMentions/internal/domain"
	"BookMentions/internal/ports"
)

// SNSAPI is the subset of the SNS client the topic uses.
type SNSAPI interface {
	ListTopics(ctx context.Context, in *sns.ListTopicsInput, opts ...func(*sns.Options)) (*sns.ListTopicsOutput, error)
	PublishBatch(ctx context.Context, in *sns.PublishBatchInput, opts ...func(*sns.Options)) (*sns.PublishBatchOutput, error)
}

// SNSTopic fans entries out to the queue subscribed to it.
type SNSTopic struct {
	api  SNSAPI
	name string
	arn  string
}

var _ ports.Topic = (*SNSTopic)(nil)

// NewSNSTopic finds the topic whose ARN ends with name.
func NewSNSTopic(ctx context.Context, api SNSAPI, name string) (*SNSTopic, error) {
	p := sns.NewListTopicsPaginator(api, &sns.ListTopicsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list topics: %w", err)
		}
		for _, t := range page.Topics {
			arn := sdkaws.ToString(t.TopicArn)
			if strings.HasSuffix(arn, ":"+name) {
				return &SNSTopic{api: api, name: name, arn: arn}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrTopicNotFound, name)
}

// Name returns the topic name.
func (t *SNSTopic) Name() string { return t.name }

// PublishBatch sends up to ten entries in one call and reports how many the
// service rejected.
func (t *SNSTopic) PublishBatch(ctx context.Context, entries []domain.PublishEntry) (int, error) {
	req := make([]snstypes.PublishBatchRequestEntry, 0, len(entries))
	for _, e := range entries {
		req = append(req, snstypes.PublishBatchRequestEntry{
			Id:             sdkaws.String(e.ID),
			Message:        sdkaws.String(e.Message),
			MessageGroupId: sdkaws.String(e.GroupID),
		})
	}
	out, err := t.api.PublishBatch(ctx, &sns.PublishBatchInput{
		TopicArn:                   sdkaws.String(t.arn),
		PublishBatchRequestEntries: req,
	})
	if err != nil {
		return len(entries), fmt.Errorf("publish batch %s: %w", t.name, err)
	}
	return len(out.Failed), nil
}
