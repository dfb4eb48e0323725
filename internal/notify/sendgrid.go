package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/JakeFAU/followwatch/internal/metrics"
	"github.com/JakeFAU/followwatch/internal/tracker"
)

const (
	defaultSendGridHost = "https://api.sendgrid.com"
	sendEndpoint        = "/v3/mail/send"
)

// SendGridConfig configures the SendGrid mailer.
type SendGridConfig struct {
	APIKey string
	Host   string
	Sender string
}

// SendGridMailer delivers messages through the SendGrid v3 API.
type SendGridMailer struct {
	mu     sync.Mutex
	client *sendgrid.Client
	from   *sgmail.Email
	logger *zap.Logger
}

var _ tracker.Mailer = (*SendGridMailer)(nil)

// NewSendGridMailer builds a SendGridMailer.
func NewSendGridMailer(cfg SendGridConfig, logger *zap.Logger) (*SendGridMailer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sendgrid: api key is required")
	}
	sender, err := mail.ParseAddress(cfg.Sender)
	if err != nil {
		return nil, fmt.Errorf("sendgrid: invalid sender %q: %w", cfg.Sender, err)
	}
	if cfg.Host == "" {
		cfg.Host = defaultSendGridHost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	req := sendgrid.GetRequest(cfg.APIKey, sendEndpoint, cfg.Host)
	req.Method = http.MethodPost
	return &SendGridMailer{
		client: &sendgrid.Client{Request: req},
		from:   sgmail.NewEmail(sender.Name, sender.Address),
		logger: logger.Named("sendgrid"),
	}, nil
}

// Send implements tracker.Mailer.
func (m *SendGridMailer) Send(ctx context.Context, msg tracker.Message) error {
	email := sgmail.NewSingleEmail(m.from, msg.Subject, sgmail.NewEmail("", msg.To), msg.Text, msg.HTML)

	// The client carries the request body between calls.
	m.mu.Lock()
	resp, err := m.client.SendWithContext(ctx, email)
	m.mu.Unlock()
	if err != nil {
		metrics.ObserveNotification("error")
		return &tracker.UpstreamError{Status: http.StatusBadGateway, Message: "sendgrid request failed", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ObserveNotification("error")
		return tracker.NewUpstreamError(resp.StatusCode, resp.Body)
	}
	metrics.ObserveNotification("sent")
	m.logger.Info("notification sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
