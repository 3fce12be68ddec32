package notify

import (
	"context"
	"fmt"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"

	"github.com/shiftwise/workforce-iam/internal/core/port"
	"github.com/shiftwise/workforce-iam/internal/infra/config"
	"github.com/shiftwise/workforce-iam/internal/infra/logger"
)

// EmailNotifier delivers one-time codes over SMTP.
type EmailNotifier struct {
	dialer *mail.Dialer
	from   string
	log    *zap.Logger
}

var _ port.CodeNotifier = (*EmailNotifier)(nil)

// NewEmailNotifier constructs an SMTP-backed notifier.
func NewEmailNotifier(cfg config.SMTPSettings, log *zap.Logger) (*EmailNotifier, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp: host and from address are required")
	}

	dialer := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.StartTLSPolicy = mail.MandatoryStartTLS

	return &EmailNotifier{dialer: dialer, from: cfg.From, log: log}, nil
}

// SendCode delivers the code to the given email address.
func (n *EmailNotifier) SendCode(ctx context.Context, address, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", address)
	msg.SetHeader("Subject", "Your verification code")
	msg.SetBody("text/plain", fmt.Sprintf("Your verification code is %s. It expires shortly.", code))

	if err := n.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp: send mail: %w", err)
	}

	n.log.Info("verification code sent over email",
		zap.String("to", logger.MaskEmail(address)),
	)
	return nil
}
