package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/shiftwise/workforce-iam/internal/core/port"
)

// LogNotifier writes codes to the service log instead of an external
// channel. Development only; the code value appears in plain text.
type LogNotifier struct {
	log *zap.Logger
}

var _ port.CodeNotifier = (*LogNotifier)(nil)

// NewLogNotifier constructs the development notifier.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// SendCode logs the code and destination.
func (n *LogNotifier) SendCode(_ context.Context, address, code string) error {
	n.log.Info("verification code issued (log channel)",
		zap.String("to", address),
		zap.String("code", code),
	)
	return nil
}
