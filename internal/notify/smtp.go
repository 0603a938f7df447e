package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

// ErrMissingCredentials is returned when SMTP delivery is selected without a password.
var ErrMissingCredentials = errors.New("smtp credentials not configured")

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends real email over STARTTLS.
type SMTPNotifier struct {
	cfg    SMTPConfig
	sender mailSender
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, msgs ...*mail.Msg) error
}

func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, ErrMissingCredentials
	}
	c, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPNotifier{cfg: cfg, sender: c}, nil
}

// NewSMTPNotifierWith is only for tests to inject a fake sender.
func NewSMTPNotifierWith(cfg SMTPConfig, s mailSender) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, sender: s}
}

func (s *SMTPNotifier) Notify(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}
	if err := s.sender.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send %s mail: %w", msg.Kind, err)
	}
	return nil
}

func (s *SMTPNotifier) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	if msg.Attachment != "" {
		m.AttachFile(msg.Attachment)
	}
	return m, nil
}
