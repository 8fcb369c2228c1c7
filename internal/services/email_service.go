package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// AWSSESEmailService delivers second-factor codes using AWS SES.
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendTwoFactorCode sends the verification code to the user's address.
func (s *AWSSESEmailService) SendTwoFactorCode(ctx context.Context, email, username, code string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Your verification code</h1>
        <p>Hello %s,</p>
        <p>Use the code below to finish signing in:</p>
        <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">%s</p>
        <p>The code expires in a few minutes. If you did not try to sign in,
        you can ignore this email and consider changing your password.</p>
    </div>
</body>
</html>
`, username, code)

	textBody := fmt.Sprintf(`Your verification code

Hello %s,

Use the code below to finish signing in:

    %s

The code expires in a few minutes. If you did not try to sign in, you can
ignore this email and consider changing your password.
`, username, code)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your verification code"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send two-factor email via SES",
			slog.String("username", username),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("two-factor email sent",
		slog.String("username", username),
		slog.String("message_id", *result.MessageId))

	return nil
}

// LocalEmailService is the non-failing fallback delivery path: it writes the
// code to the application log instead of sending anything. Useful for
// development and as the degraded mode when SES is down.
type LocalEmailService struct {
	logger *slog.Logger
}

func NewLocalEmailService(logger *slog.Logger) *LocalEmailService {
	return &LocalEmailService{logger: logger}
}

func (s *LocalEmailService) SendTwoFactorCode(ctx context.Context, email, username, code string) error {
	s.logger.Info("two-factor code (local delivery)",
		slog.String("username", username),
		slog.String("code", code))
	return nil
}
