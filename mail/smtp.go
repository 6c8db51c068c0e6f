package mail

import (
	"bytes"
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// SMTPConfig is the configuration of an SMTP server.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SMTP sends messages through an SMTP server.
type SMTP struct {
	cfg SMTPConfig
	log *zap.Logger
}

// NewSMTP returns a Sender using the SMTP server of cfg.
func NewSMTP(cfg SMTPConfig, log *zap.Logger) *SMTP {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTP{cfg: cfg, log: log}
}

// message builds the go-mail message of msg.
func (s *SMTP) message(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.cfg.From, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipients %v: %w", msg.To, err)
	}
	m.Subject(msg.Subject)

	html, err := HTML(msg.Markdown)
	if err != nil {
		return nil, err
	}
	m.SetBodyString(gomail.TypeTextPlain, msg.Markdown)
	m.AddAlternativeString(gomail.TypeTextHTML, html)

	for _, a := range msg.Attachments {
		var opts []gomail.FileOption
		if a.ContentType != "" {
			opts = append(opts, gomail.WithFileContentType(gomail.ContentType(a.ContentType)))
		}
		if err := m.AttachReader(a.Name, bytes.NewReader(a.Data), opts...); err != nil {
			return nil, fmt.Errorf("cannot attach %q: %w", a.Name, err)
		}
	}
	return m, nil
}

// Send implements Sender.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := s.message(msg)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("cannot create SMTP client for %s: %w", s.cfg.Host, err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("cannot send %q: %w", msg.Subject, err)
	}
	s.log.Info("mail sent", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
