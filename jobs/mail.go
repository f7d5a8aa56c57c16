package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/hibiken/asynq"
)

// Mailer delivers plain text mail over SMTP.
type Mailer struct {
	addr string
	from string
}

// NewMailer builds a Mailer for host:port.
func NewMailer(host string, port int, from string) *Mailer {
	return &Mailer{addr: fmt.Sprintf("%s:%d", host, port), from: from}
}

// Send delivers one message.
func (m *Mailer) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, body)
	return smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg))
}

// NewSendEmailHandler builds the handler delivering queued alert mail.
func NewSendEmailHandler(mailer *Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := mailer.Send(payload.To, payload.Subject, payload.Body); err != nil {
			logger.Warn("send email failed", slog.String("to", payload.To), slog.Any("error", err))
			return err
		}
		logger.Info("email sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
		return nil
	}
}
