// Package aws adapts managed queue, topic, query-engine and email services
// to the pipeline ports.
package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Clients bundles the service clients built from one SDK config.
type Clients struct {
	SQS    *sqs.Client
	SNS    *sns.Client
	Athena *athena.Client
	SES    *ses.Client
}

// NewClients loads credentials from the default provider chain. A non-empty
// endpoint points every client at a local emulator.
func NewClients(ctx context.Context, region, endpoint string) (*Clients, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var base *string
	if endpoint != "" {
		base = sdkaws.String(endpoint)
	}

	return &Clients{
		SQS:    sqs.NewFromConfig(cfg, func(o *sqs.Options) { o.BaseEndpoint = base }),
		SNS:    sns.NewFromConfig(cfg, func(o *sns.Options) { o.BaseEndpoint = base }),
		Athena: athena.NewFromConfig(cfg, func(o *athena.Options) { o.BaseEndpoint = base }),
		SES:    ses.NewFromConfig(cfg, func(o *ses.Options) { o.BaseEndpoint = base }),
	}, nil
}
