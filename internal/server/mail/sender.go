// Package mail delivers transactional email. Senders talk to a provider;
// the Dispatcher queues messages and retries them off the request path.
package mail

import (
	"context"
	"errors"
	"net/mail"
	"strings"
)

var (
	ErrInvalidMessage = errors.New("invalid mail message")
	ErrInvalidConfig  = errors.New("invalid mail config")
	ErrSendFailed     = errors.New("mail send failed")
)

// Sender hands a single message to a delivery provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"-"`
	Tag      string `json:"tag,omitempty"`
}

func (m Message) Validate() error {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return errors.Join(ErrInvalidMessage, err)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.Join(ErrInvalidMessage, errors.New("subject is required"))
	}
	if strings.TrimSpace(m.HTMLBody) == "" {
		return errors.Join(ErrInvalidMessage, errors.New("body is required"))
	}
	return nil
}
