package mailer_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/authme/core/internal/mailer"
	"github.com/stretchr/testify/assert"
)

func newTestMailer() *mailer.LoggingMailer {
	return &mailer.LoggingMailer{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestLoggingMailer_SendVerificationDoesNotError(t *testing.T) {
	m := newTestMailer()
	var sender mailer.EmailSender = m
	assert.NoError(t, sender.SendVerification(context.Background(), "user@example.com", "tok123", "https://auth.example.com"))
}

func TestLoggingMailer_SendPasswordResetDoesNotError(t *testing.T) {
	m := newTestMailer()
	var sender mailer.EmailSender = m
	assert.NoError(t, sender.SendPasswordReset(context.Background(), "user@example.com", "tok456", "https://auth.example.com"))
}
