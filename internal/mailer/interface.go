// Package mailer defines the email-sending contract the core delegates
// to. SMTP delivery, templates, and tenant SMTP configuration are an
// external collaborator's concern (out of core scope); this package
// carries only the interface and a logging implementation suitable for
// development.
package mailer

import (
	"context"
	"log/slog"
)

// EmailSender is the seam verification/password-reset flows use to
// deliver a link to a user. A real implementation lives outside the
// core and is injected at startup.
type EmailSender interface {
	SendVerification(ctx context.Context, to, token, baseURL string) error
	SendPasswordReset(ctx context.Context, to, token, baseURL string) error
}

// LoggingMailer logs the email it would have sent instead of delivering
// it, so a deployment without SMTP configured still has a working (if
// unthemed) verification/reset path during development.
type LoggingMailer struct {
	Logger *slog.Logger
}

func (m *LoggingMailer) SendVerification(ctx context.Context, to, token, baseURL string) error {
	m.Logger.Info("email_sent", "to", to, "type", "email_verification", "link", baseURL+"/verify?token="+token)
	return nil
}

func (m *LoggingMailer) SendPasswordReset(ctx context.Context, to, token, baseURL string) error {
	m.Logger.Info("email_sent", "to", to, "type", "password_reset", "link", baseURL+"/reset?token="+token)
	return nil
}
