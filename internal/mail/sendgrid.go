package mail

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"context"

	"github.com/fieldform/inspection-api/internal/config"
)

var ErrChannelNotConfigured = errors.New("mail channel is not configured")

// SendgridChannel delivers mail through the SendGrid v3 HTTP API.
type SendgridChannel struct {
	apiKey     string
	baseUrl    string
	fromEmail  string
	fromName   string
	httpClient *http.Client
}

var _ Channel = (*SendgridChannel)(nil)

func NewSendgridChannel(cfg *config.Config) *SendgridChannel {
	return &SendgridChannel{
		apiKey:     cfg.Delivery.SendgridKey,
		baseUrl:    strings.TrimRight(cfg.Delivery.SendgridUrl, "/"),
		fromEmail:  cfg.Delivery.FromAddress,
		fromName:   cfg.Delivery.FromName,
		httpClient: &http.Client{Timeout: cfg.Delivery.SendTimeout},
	}
}

func (c *SendgridChannel) IsReady() bool {
	return c.apiKey != "" && c.fromEmail != ""
}

// SendGrid mail send wire types
type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgAttachment struct {
	Content     string `json:"content"`
	Type        string `json:"type,omitempty"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition,omitempty"`
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
	Attachments      []sgAttachment    `json:"attachments,omitempty"`
}

func (c *SendgridChannel) Send(ctx context.Context, msg Message) (string, error) {
	if !c.IsReady() {
		return "", ErrChannelNotConfigured
	}

	wire := mailSendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: msg.Recipient}}}},
		From:             emailAddress{Email: c.fromEmail, Name: c.fromName},
		Subject:          msg.Subject,
		Content:          []mailContent{{Type: "text/plain", Value: msg.Body}},
	}

	if msg.Attachment != nil {
		wire.Attachments = []sgAttachment{{
			Content:     base64.StdEncoding.EncodeToString(msg.Attachment.Content),
			Type:        msg.Attachment.MIMEType,
			Filename:    msg.Attachment.Filename,
			Disposition: "attachment",
		}}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(wire); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+"/v3/mail/send", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("sendgrid http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return strings.TrimSpace(resp.Header.Get("X-Message-Id")), nil
}
