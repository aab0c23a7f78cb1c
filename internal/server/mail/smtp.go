package mail

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPSender dials the relay for every message.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
	send   func(d *gomail.Dialer, m ...*gomail.Message) error
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: smtp host is required", ErrInvalidConfig)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: sender address is required", ErrInvalidConfig)
	}
	return &SMTPSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		send: func(d *gomail.Dialer, m ...*gomail.Message) error {
			return d.DialAndSend(m...)
		},
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)

	if err := s.send(s.dialer, m); err != nil {
		return errors.Join(ErrSendFailed, fmt.Errorf("send email: %w", err))
	}
	return nil
}
