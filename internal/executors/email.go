package executors

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/glowdesk/automations/pkg/config"
	"github.com/glowdesk/automations/pkg/logger"
)

// SMTPEmailExecutor sends workflow emails over SMTP
type SMTPEmailExecutor struct {
	cfg    *config.EmailConfig
	logger *logger.Logger
}

// NewSMTPEmailExecutor creates a new SMTP email executor
func NewSMTPEmailExecutor(cfg *config.EmailConfig, log *logger.Logger) *SMTPEmailExecutor {
	return &SMTPEmailExecutor{cfg: cfg, logger: log}
}

// Send delivers one HTML email to a client
func (e *SMTPEmailExecutor) Send(ctx context.Context, to, subject, html string) error {
	if !e.cfg.Enabled {
		// Useful in development: log instead of delivering.
		e.logger.Info("Email delivery disabled, skipping send",
			logger.String("to", to),
			logger.String("subject", subject),
		)
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.cfg.FromAddress)
	message += fmt.Sprintf("To: %s\r\n", to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "MIME-Version: 1.0\r\n"
	message += "Content-Type: text/html; charset=UTF-8\r\n"
	message += "\r\n"
	message += html

	auth := smtp.PlainAuth("", e.cfg.SMTPUser, e.cfg.SMTPPassword, e.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, e.cfg.SMTPPort)

	if err := smtp.SendMail(addr, auth, e.cfg.FromAddress, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Infof("Email sent successfully to %s", to)
	return nil
}
