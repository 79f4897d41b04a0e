package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"

	"BookMentions/internal/ports"
)

// SESAPI is the subset of the SES client the notifier uses.
type SESAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, opts ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier emails alerts to one address from itself.
type SESNotifier struct {
	api     SESAPI
	address string
}

var _ ports.Notifier = (*SESNotifier)(nil)

// NewSESNotifier returns a notifier for address.
func NewSESNotifier(api SESAPI, address string) *SESNotifier {
	return &SESNotifier{api: api, address: address}
}

// Alert sends a plain-text email.
func (n *SESNotifier) Alert(ctx context.Context, subject, body string) error {
	if n.address == "" {
		return nil
	}
	_, err := n.api.SendEmail(ctx, &ses.SendEmailInput{
		Source:      sdkaws.String(n.address),
		Destination: &sestypes.Destination{ToAddresses: []string{n.address}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: sdkaws.String(subject)},
			Body:    &sestypes.Body{Text: &sestypes.Content{Data: sdkaws.String(body)}},
		},
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
