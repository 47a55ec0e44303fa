// Package mailer sends the confirmation e-mail for stored contact submissions.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/wneessen/go-mail"
)

// DefaultSMTPPort is used when no port is configured.
const DefaultSMTPPort = 587

// ErrNotConfigured is returned when an SMTP mailer is built without a host or sender.
var ErrNotConfigured = errors.New("smtp mailer not configured")

// Message is one outbound e-mail with plain-text and HTML alternatives.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends e-mail messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Opts holds SMTP configuration.
type Opts struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// StartTLS requires TLS on the connection; otherwise TLS is used opportunistically.
	StartTLS bool
}

// Option defines a configuration option for the SMTP mailer.
type Option func(*Opts)

// WithHost sets the SMTP server host.
func WithHost(host string) Option {
	return func(o *Opts) { o.Host = host }
}

// WithPort sets the SMTP server port.
func WithPort(port int) Option {
	return func(o *Opts) { o.Port = port }
}

// WithCredentials sets the SMTP PLAIN auth credentials.
func WithCredentials(username, password string) Option {
	return func(o *Opts) {
		o.Username = username
		o.Password = password
	}
}

// WithFrom sets the sender address.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// WithRequiredTLS makes STARTTLS mandatory.
func WithRequiredTLS() Option {
	return func(o *Opts) { o.StartTLS = true }
}

// SMTPMailer delivers messages over SMTP using go-mail.
type SMTPMailer struct {
	cfg Opts
}

// NewSMTPMailer validates the options and returns an SMTP mailer.
// A connection is opened per Send.
func NewSMTPMailer(opts ...Option) (*SMTPMailer, error) {
	cfg := Opts{Port: DefaultSMTPPort}
	for _, opt := range opts {
		opt(&cfg)
	}
	if strings.TrimSpace(cfg.Host) == "" || strings.TrimSpace(cfg.From) == "" {
		return nil, ErrNotConfigured
	}
	slog.Debug("SMTPMailer created", "host", cfg.Host, "port", cfg.Port, "auth", cfg.Username != "", "required_tls", cfg.StartTLS)
	return &SMTPMailer{cfg: cfg}, nil
}

func (m *SMTPMailer) buildMessage(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		out.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return out, nil
}

func (m *SMTPMailer) newClient() (*mail.Client, error) {
	policy := mail.TLSOpportunistic
	if m.cfg.StartTLS {
		policy = mail.TLSMandatory
	}
	clientOpts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(policy),
	}
	if m.cfg.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return mail.NewClient(m.cfg.Host, clientOpts...)
}

// Send delivers msg. There is no retry.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	out, err := m.buildMessage(msg)
	if err != nil {
		return err
	}
	client, err := m.newClient()
	if err != nil {
		slog.Error("SMTPMailer.Send: client setup failed", "error", err)
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		slog.Error("SMTPMailer.Send: delivery failed", "error", err, "to", msg.To)
		return fmt.Errorf("failed to send e-mail to %s: %w", msg.To, err)
	}
	slog.Info("SMTPMailer.Send: e-mail sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// LogMailer writes messages to the log instead of sending them. Used when SMTP is not configured.
type LogMailer struct{}

// Send logs the message.
func (LogMailer) Send(_ context.Context, msg Message) error {
	slog.Info("LogMailer.Send: e-mail not delivered (SMTP not configured)", "to", msg.To, "subject", msg.Subject, "text", msg.Text)
	return nil
}

// MockMailer records sent messages for tests and can be told to fail.
type MockMailer struct {
	mu   sync.Mutex
	Sent []Message
	Err  error
}

// Send records msg, or returns Err without recording when set.
func (m *MockMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *MockMailer) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Sent...)
}
