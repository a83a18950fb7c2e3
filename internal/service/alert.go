package service

import (
	"context"
	"fmt"

	"deposit-backend/internal/domain"
	"deposit-backend/internal/logger"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendgridAlertService struct {
	apiKey    string
	fromEmail string
	opsEmail  string
}

// NewAlertService returns the SendGrid-backed alerter, or a no-op one
// when no API key is configured.
func NewAlertService(apiKey, fromEmail, opsEmail string) AlertService {
	if apiKey == "" || opsEmail == "" {
		logger.Info("ops alerting disabled, no sendgrid key configured")
		return &noopAlertService{}
	}
	return &sendgridAlertService{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		opsEmail:  opsEmail,
	}
}

func (s *sendgridAlertService) WebhookEventFailed(ctx context.Context, ev *domain.WebhookEvent) {
	subject := fmt.Sprintf("[deposits] webhook event %s failed after %d attempts", ev.ExternalEventID, ev.Attempts)
	body := fmt.Sprintf(
		"Webhook event %s (type %s, reference %s) exhausted its retries and needs manual inspection.\n\nLast error: %s\n",
		ev.ExternalEventID, ev.Type, ev.RelatedReference, ev.LastError,
	)

	from := mail.NewEmail("Deposit Service", s.fromEmail)
	to := mail.NewEmail("Operations", s.opsEmail)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		logger.Error("failed to send ops alert", "event_id", ev.ExternalEventID, "error", err)
		return
	}
	if response.StatusCode >= 400 {
		logger.Error("ops alert rejected", "event_id", ev.ExternalEventID, "status", response.StatusCode, "body", response.Body)
	}
}

type noopAlertService struct{}

func (s *noopAlertService) WebhookEventFailed(ctx context.Context, ev *domain.WebhookEvent) {
	logger.Warn("webhook event needs manual inspection",
		"event_id", ev.ExternalEventID, "type", ev.Type, "attempts", ev.Attempts, "last_error", ev.LastError)
}
