package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/google/uuid"

	"github.com/fieldform/inspection-api/internal/config"
)

// SmtpChannel delivers mail through a plain SMTP relay.
type SmtpChannel struct {
	host     string
	port     string
	username string
	password string
	from     string
	timeout  time.Duration
}

var _ Channel = (*SmtpChannel)(nil)

func NewSmtpChannel(cfg *config.Config) *SmtpChannel {
	return &SmtpChannel{
		host:     cfg.Delivery.SmtpHost,
		port:     cfg.Delivery.SmtpPort,
		username: cfg.Delivery.SmtpUser,
		password: cfg.Delivery.SmtpPassword,
		from:     cfg.Delivery.FromAddress,
		timeout:  cfg.Delivery.SendTimeout,
	}
}

func (c *SmtpChannel) IsReady() bool {
	return c.host != "" && c.from != ""
}

func (c *SmtpChannel) Send(ctx context.Context, msg Message) (string, error) {
	if !c.IsReady() {
		return "", ErrChannelNotConfigured
	}

	addr := net.JoinHostPort(c.host, c.port)
	dialer := net.Dialer{Timeout: c.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, c.host)
	if err != nil {
		conn.Close()
		return "", err
	}
	defer client.Close()

	if c.username != "" {
		auth := smtp.PlainAuth("", c.username, c.password, c.host)
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return "", err
			}
		}
	}

	if err := client.Mail(c.from); err != nil {
		return "", err
	}
	if err := client.Rcpt(msg.Recipient); err != nil {
		return "", err
	}

	w, err := client.Data()
	if err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), c.host)
	if _, err := w.Write(buildMime(c.from, messageID, msg)); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	if err := client.Quit(); err != nil {
		return "", err
	}
	return messageID, nil
}

// buildMime assembles a multipart/mixed message with an optional base64
// encoded attachment part.
func buildMime(from, messageID string, msg Message) []byte {
	var buf bytes.Buffer
	boundary := uuid.New().String()

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.Recipient)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if msg.Attachment == nil {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.Body)
		buf.WriteString("\r\n")
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(msg.Body)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: %s\r\n", msg.Attachment.MIMEType)
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", msg.Attachment.Filename)

	encoded := base64.StdEncoding.EncodeToString(msg.Attachment.Content)
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76])
		buf.WriteString("\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}
