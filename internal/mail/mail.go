// Package mail abstracts the outbound notification channel. Each backend is a
// Channel implementation selected once at construction time; business logic
// never branches on a configuration string.
package mail

import (
	"context"
)

type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

type Message struct {
	Recipient  string
	Subject    string
	Body       string
	Attachment *Attachment
}

type Channel interface {
	// Send delivers the message and returns the channel's message id.
	Send(ctx context.Context, msg Message) (string, error)
	// IsReady reports whether the channel is configured well enough for a
	// delivery attempt to possibly succeed.
	IsReady() bool
}

// UnconfiguredChannel is the Channel used when no mail backend is configured.
// IsReady always returns false, which makes the dispatcher skip its batches
// instead of burning retries on deliveries that cannot succeed.
type UnconfiguredChannel struct{}

func NewUnconfiguredChannel() *UnconfiguredChannel {
	return &UnconfiguredChannel{}
}

func (c *UnconfiguredChannel) Send(ctx context.Context, msg Message) (string, error) {
	return "", ErrChannelNotConfigured
}

func (c *UnconfiguredChannel) IsReady() bool {
	return false
}
