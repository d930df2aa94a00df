package channel

import (
	"context"
	"fmt"
	"time"

	"lead-intake-workers/internal/common/config"

	gomail "github.com/wneessen/go-mail"
)

// SMTP delivers email through a relay using go-mail.
type SMTP struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string
	tls       gomail.TLSPolicy
	timeout   time.Duration
}

func NewSMTP(cfg config.SMTPConfig, timeout time.Duration) *SMTP {
	policy := gomail.TLSOpportunistic
	if cfg.UseTLS {
		policy = gomail.TLSMandatory
	}
	return &SMTP{
		host:      cfg.Host,
		port:      cfg.Port,
		username:  cfg.Username,
		password:  cfg.Password,
		fromEmail: cfg.DefaultFrom,
		fromName:  cfg.FromName,
		tls:       policy,
		timeout:   timeout,
	}
}

func (s *SMTP) buildMessage(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if s.fromName != "" {
		if err := m.FromFormat(s.fromName, s.fromEmail); err != nil {
			return nil, fmt.Errorf("smtp from: %w", err)
		}
	} else if err := m.From(s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("smtp to %q: %w: %v", msg.To, ErrInvalidAddress, err)
	}
	m.SetMessageID()
	m.SetDate()
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return m, nil
}

func (s *SMTP) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(s.tls),
	}
	if s.timeout > 0 {
		opts = append(opts, gomail.WithTimeout(s.timeout))
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}
	return gomail.NewClient(s.host, opts...)
}

func (s *SMTP) Send(ctx context.Context, msg Message) (Receipt, error) {
	m, err := s.buildMessage(msg)
	if err != nil {
		return Receipt{}, err
	}

	c, err := s.client()
	if err != nil {
		return Receipt{}, fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return Receipt{}, fmt.Errorf("smtp send: %w", err)
	}

	var id string
	if ids := m.GetGenHeader(gomail.HeaderMessageID); len(ids) > 0 {
		id = ids[0]
	}
	return Receipt{Transport: config.TransportSMTP, MessageID: id}, nil
}
