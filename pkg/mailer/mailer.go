// Package mailer delivers transactional email through the SendGrid v3 HTTP API.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Sender sends a single HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

var ErrRejected = errors.New("mail provider rejected the message")

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type personalization struct {
	To []address `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type SendGridClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	from    address
	log     *zap.Logger
}

func NewSendGridClient(cfg config.MailConfig, log *zap.Logger) *SendGridClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "sendgrid",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("mail circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &SendGridClient{
		http:    client,
		breaker: breaker,
		from:    address{Email: cfg.FromEmail, Name: cfg.FromName},
		log:     log,
	}
}

func (c *SendGridClient) Send(ctx context.Context, to, subject, htmlBody string) error {
	body := sendRequest{
		Personalizations: []personalization{{To: []address{{Email: to}}}},
		From:             c.from,
		Subject:          subject,
		Content:          []content{{Type: "text/html", Value: htmlBody}},
	}

	_, err := c.breaker.Execute(func() (*resty.Response, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			Post("/v3/mail/send")
		if err != nil {
			return nil, fmt.Errorf("sending mail: %w", err)
		}
		if resp.IsError() {
			return resp, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode())
		}
		return resp, nil
	})
	return err
}

// LogSender stands in when delivery is disabled.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.log.Info("mail delivery disabled, message not sent",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

// New picks the sender for the configuration.
func New(cfg config.MailConfig, log *zap.Logger) Sender {
	if !cfg.Enabled {
		return NewLogSender(log)
	}
	return NewSendGridClient(cfg, log)
}
