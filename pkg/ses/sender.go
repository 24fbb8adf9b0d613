package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

const charsetUTF8 = "UTF-8"

// EmailAPI is the subset of the SES v2 API the sender uses
type EmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

var _ EmailAPI = (*sesv2.Client)(nil)

// Sender sends plain-text email through SES
type Sender struct {
	client EmailAPI
}

// NewSender creates a sender from AWS config
func NewSender(cfg aws.Config) *Sender {
	return NewSenderWithAPI(sesv2.NewFromConfig(cfg))
}

// NewSenderWithAPI creates a sender over an existing API implementation
func NewSenderWithAPI(api EmailAPI) *Sender {
	return &Sender{client: api}
}

// SendEmail sends body verbatim as a UTF-8 text message
func (s *Sender) SendEmail(ctx context.Context, from string, to []string, subject, body string) error {
	if len(to) == 0 {
		return fmt.Errorf("send email: no recipients")
	}

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: to,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String(charsetUTF8)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String(charsetUTF8)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
