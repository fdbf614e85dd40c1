package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mael-group/aegis-meet-go/internal/cfg"
	"github.com/mael-group/aegis-meet-go/internal/httpclient"
)

func init() {
	RegisterDriver("resend", newResendMailer)
}

// resendOptions are the driver options decoded from the config map.
type resendOptions struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// ApplyDefaults implements cfg.Setter.
func (o *resendOptions) ApplyDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = "https://api.resend.com"
	}
}

// resendMailer delivers messages through the Resend REST API.
type resendMailer struct {
	opts   resendOptions
	client *httpclient.Client
	logger *slog.Logger
	from   string
}

func newResendMailer(optMap map[string]any, deps Deps) (Mailer, error) {
	var opts resendOptions
	if err := cfg.Decode(optMap, &opts); err != nil {
		return nil, fmt.Errorf("decode resend options: %w", err)
	}
	if opts.APIKey == "" {
		return nil, errors.New("resend mailer requires api_key")
	}
	if deps.Client == nil {
		return nil, errors.New("resend mailer requires an HTTP client")
	}
	if deps.From == "" {
		return nil, errors.New("resend mailer requires a from address")
	}

	return &resendMailer{
		opts:   opts,
		client: deps.Client,
		logger: deps.Logger,
		from:   deps.From,
	}, nil
}

func (m *resendMailer) Name() string {
	return "resend"
}

type resendAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

type resendRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html,omitempty"`
	Text        string             `json:"text,omitempty"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

func (m *resendMailer) Send(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return errors.New("message has no recipients")
	}

	body := resendRequest{
		From:    m.from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	}
	for _, a := range msg.Attachments {
		body.Attachments = append(body.Attachments, resendAttachment{
			Filename:    a.Filename,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: a.ContentType,
		})
	}

	endpoint := strings.TrimSuffix(m.opts.BaseURL, "/") + "/emails"
	headers := map[string]string{
		"Authorization": "Bearer " + m.opts.APIKey,
	}

	status, _, err := m.client.PostJSON(ctx, endpoint, headers, body)
	if err != nil {
		return fmt.Errorf("resend request: %w", err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("resend rejected message with status %d", status)
	}

	m.logger.Debug("mail delivered", "to", msg.To, "subject", msg.Subject)
	return nil
}
