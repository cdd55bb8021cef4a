package notification

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/tenant"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailSink mails the tenant's registered address through Resend.
type EmailSink struct {
	db      *gorm.DB
	tenants *tenant.Directory
	sender  emailSender
	from    string
	log     *zap.Logger
}

// NewEmailSink returns nil when no API key or sender address is configured.
func NewEmailSink(cfg config.EmailConfig, db *gorm.DB, tenants *tenant.Directory, log *zap.Logger) *EmailSink {
	if cfg.ResendAPIKey == "" || cfg.FromEmail == "" {
		return nil
	}
	client := resend.NewClient(cfg.ResendAPIKey)
	return newEmailSink(client.Emails, formatFrom(cfg), db, tenants, log)
}

func newEmailSink(sender emailSender, from string, db *gorm.DB, tenants *tenant.Directory, log *zap.Logger) *EmailSink {
	return &EmailSink{
		db:      db,
		tenants: tenants,
		sender:  sender,
		from:    from,
		log:     log.Named("notification.email"),
	}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Send(ctx context.Context, ev Event) error {
	t, err := s.tenants.Find(ctx, s.db, ev.TenantID)
	if err != nil {
		return err
	}
	if t == nil || strings.TrimSpace(t.Email) == "" {
		s.log.Debug("tenant has no email, skipping", zap.String("tenant_id", ev.TenantID), zap.String("event_id", ev.ID))
		return nil
	}

	sent, err := s.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{strings.TrimSpace(t.Email)},
		Subject: ev.Title,
		Html:    renderHTML(ev),
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	s.log.Info("notification email sent", zap.String("event_id", ev.ID), zap.String("email_id", sent.Id))
	return nil
}

func formatFrom(cfg config.EmailConfig) string {
	if cfg.FromName == "" {
		return cfg.FromEmail
	}
	return fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
}

func renderHTML(ev Event) string {
	return fmt.Sprintf("<h2>%s</h2><p>%s</p>", html.EscapeString(ev.Title), html.EscapeString(ev.Body))
}
