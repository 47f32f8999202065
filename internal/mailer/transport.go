package mailer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Transport delivers a single message.
type Transport interface {
	Send(ctx context.Context, m Message) error
}

// SMTPConfig configures SMTPTransport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPTransport sends messages through an SMTP relay, upgrading to TLS when
// the server supports STARTTLS.
type SMTPTransport struct {
	cfg SMTPConfig
	now func() time.Time
}

// NewSMTPTransport creates an SMTPTransport.
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = `"No Reply" <noreply@example.com>`
	}
	return &SMTPTransport{cfg: cfg, now: time.Now}
}

func (t *SMTPTransport) Send(ctx context.Context, m Message) error {
	msg, err := t.message(m)
	if err != nil {
		return err
	}
	c, err := t.client()
	if err != nil {
		return err
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrap(err, "send")
	}
	return nil
}

func (t *SMTPTransport) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithPort(t.cfg.Port),
	}
	if t.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.cfg.Username),
			mail.WithPassword(t.cfg.Password),
		)
	}
	c, err := mail.NewClient(t.cfg.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "smtp client")
	}
	return c, nil
}

func (t *SMTPTransport) message(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(t.cfg.From); err != nil {
		return nil, errors.Wrapf(err, "sender %q", t.cfg.From)
	}
	if err := msg.To(m.To); err != nil {
		return nil, errors.Wrapf(err, "recipient %q", m.To)
	}
	msg.Subject(oneLine(m.Subject))
	msg.SetDateWithValue(t.now())
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}

// LogTransport writes messages to the log instead of sending them.
type LogTransport struct {
	lg *zap.Logger
}

// NewLogTransport creates a LogTransport.
func NewLogTransport(lg *zap.Logger) *LogTransport {
	return &LogTransport{lg: lg}
}

func (t *LogTransport) Send(_ context.Context, m Message) error {
	t.lg.Info("Email (not sent, SMTP disabled)",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("body", m.Body),
	)
	return nil
}
