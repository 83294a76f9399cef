package ses

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rotisserie/eris"
)

// Message is a single outbound email.
type Message struct {
	From     string
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// SendResult reports the provider-assigned message id.
type SendResult struct {
	MessageID string
}

// Client sends email through a transport provider.
type Client interface {
	Send(ctx context.Context, msg Message) (*SendResult, error)
}

// Config holds SES credentials and region.
type Config struct {
	Region    string
	AccessKey string
	SecretKey string
}

// sesClient implements Client on AWS SES v2.
type sesClient struct {
	client *sesv2.Client
}

// NewClient creates an SES v2 email client. Static credentials are used
// when provided; otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "ses: load aws config")
	}

	return &sesClient{client: sesv2.NewFromConfig(awsCfg)}, nil
}

func (c *sesClient) Send(ctx context.Context, msg Message) (*SendResult, error) {
	body := &types.Body{}
	if msg.TextBody != "" {
		body.Text = &types.Content{Data: aws.String(msg.TextBody)}
	}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLBody)}
	}

	out, err := c.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body:    body,
			},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "ses: send email")
	}

	return &SendResult{MessageID: aws.ToString(out.MessageId)}, nil
}
