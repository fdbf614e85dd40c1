package mailer

import (
	"context"
	"log/slog"
)

func init() {
	RegisterDriver("log", newLogMailer)
}

// logMailer writes message metadata to the log instead of sending.
// Used in dev mode and as the fallback when no mailer is configured.
type logMailer struct {
	logger *slog.Logger
	from   string
}

func newLogMailer(_ map[string]any, deps Deps) (Mailer, error) {
	return &logMailer{logger: deps.Logger, from: deps.From}, nil
}

// NewLogMailer returns a mailer that only logs. Callers that have no
// mailer configured use this as the default.
func NewLogMailer(logger *slog.Logger) Mailer {
	return &logMailer{logger: logger}
}

func (m *logMailer) Name() string {
	return "log"
}

func (m *logMailer) Send(ctx context.Context, msg *Message) error {
	m.logger.Info("mail delivery skipped (log driver)",
		"from", m.from,
		"to", msg.To,
		"subject", msg.Subject,
		"attachments", len(msg.Attachments))
	return nil
}
