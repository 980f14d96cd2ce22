package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer writes messages to the logger instead of sending them. Used in development.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a log-only mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	m.logger.Info("mail_sent",
		zap.String("to", msg.To.String()),
		zap.String("subject", msg.Subject),
		zap.String("template_id", msg.TemplateID),
		zap.Any("template_data", msg.TemplateData),
		zap.String("text", msg.Text),
	)
	return nil
}
