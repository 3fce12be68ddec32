package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/shiftwise/workforce-iam/internal/core/port"
	"github.com/shiftwise/workforce-iam/internal/infra/config"
	"github.com/shiftwise/workforce-iam/internal/infra/logger"
)

// SMSNotifier delivers one-time codes over SMS via Twilio.
type SMSNotifier struct {
	client *twilio.RestClient
	from   string
	log    *zap.Logger
}

var _ port.CodeNotifier = (*SMSNotifier)(nil)

// NewSMSNotifier constructs a Twilio-backed notifier.
func NewSMSNotifier(cfg config.TwilioSettings, log *zap.Logger) (*SMSNotifier, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, fmt.Errorf("twilio: account_sid, auth_token, and from_number are required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &SMSNotifier{client: client, from: cfg.FromNumber, log: log}, nil
}

// SendCode delivers the code to the given phone number.
func (n *SMSNotifier) SendCode(ctx context.Context, address, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(address)
	params.SetFrom(n.from)
	params.SetBody(fmt.Sprintf("Your verification code is %s. It expires shortly.", code))

	if _, err := n.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio: send message: %w", err)
	}

	n.log.Info("verification code sent over sms",
		zap.String("to", logger.MaskPhone(address)),
	)
	return nil
}
