package mailer

import (
	"context"

	"github.com/postlane/postlane/application/port/outbound"
	"github.com/postlane/postlane/infrastructure/service/logger"
)

// LogMailer stands in for the real mail transport: it records that a reset
// email would have been sent. The token itself is not logged.
type LogMailer struct {
	logger logger.Logger
}

func NewLogMailer(log logger.Logger) outbound.Mailer {
	return &LogMailer{logger: log}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, resetToken string) error {
	m.logger.Info(ctx, "Password reset email dispatched", map[string]interface{}{
		"email": email,
	})
	return nil
}
