package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"membership_backend/internal/config"

	"github.com/domodwyer/mailyak/v3"
	"go.uber.org/zap"
)

// Sender delivers transactional mail. Implemented over SMTP; tests substitute
// their own fake.
type Sender interface {
	SendVerificationEmail(ctx context.Context, email, token, locale string) error
}

type smtpSender struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSMTPSender creates a Sender backed by the configured SMTP relay.
func NewSMTPSender(cfg *config.Config, logger *zap.Logger) Sender {
	return &smtpSender{cfg: cfg, logger: logger.Named("Mailer")}
}

// SendVerificationEmail sends an email-verification message carrying the
// confirmation link for the given token.
func (s *smtpSender) SendVerificationEmail(ctx context.Context, email, token, locale string) error {
	m := mailyak.New(fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort),
		smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost))

	verifyURL := fmt.Sprintf("%s/%s/verify-email?token=%s", s.cfg.FrontendBaseURL, locale, token)

	m.To(email)
	m.From(s.cfg.SMTPFrom)
	m.Subject("Verify your email address")
	m.HTML().Set(fmt.Sprintf(`
		<h1>Email Verification</h1>
		<p>Please click the link below to verify your email address:</p>
		<p><a href="%s">Verify Email</a></p>
	`, verifyURL))

	// mailyak's Send has no context support; run it in a goroutine so a hung
	// SMTP connection cannot outlive the request.
	done := make(chan error, 1)
	go func() {
		done <- m.Send()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send verification email: %w", err)
		}
	}

	s.logger.Info("Verification email sent", zap.String("email", email))
	return nil
}
