package email

import (
	"context"
	"errors"
	"strings"
)

var ErrInvalidMessage = errors.New("invalid_email_message")

// Message is a plaintext email addressed to a single recipient.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" || !strings.Contains(m.To, "@") {
		return ErrInvalidMessage
	}
	if strings.TrimSpace(m.Subject) == "" {
		return ErrInvalidMessage
	}
	return nil
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	return nil
}
