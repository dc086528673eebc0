package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"
)

// MailConfig configures outbound SMTP delivery.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether an SMTP relay is configured.
func (c MailConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers TaskTypeSendEmail tasks.
type Mailer struct {
	cfg    MailConfig
	logger *slog.Logger
	send   SendFunc
}

// NewMailer constructs the mail task handler.
func NewMailer(cfg MailConfig, logger *slog.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger, send: smtp.SendMail}
}

// WithSender overrides the SMTP transport.
func (m *Mailer) WithSender(send SendFunc) *Mailer {
	if send != nil {
		m.send = send
	}
	return m
}

// Handle processes TaskTypeSendEmail tasks.
func (m *Mailer) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode mail payload: %v: %w", err, asynq.SkipRetry)
	}
	if len(payload.To) == 0 {
		return fmt.Errorf("mail without recipients: %w", asynq.SkipRetry)
	}
	if !m.cfg.Enabled() {
		m.log().Info("smtp disabled, dropping mail",
			slog.Any("to", payload.To),
			slog.String("subject", payload.Subject),
		)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.port()))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(addr, auth, m.cfg.From, payload.To, m.compose(payload)); err != nil {
		m.log().Error("send mail", slog.String("subject", payload.Subject), slog.Any("error", err))
		return err
	}
	m.log().Info("mail sent", slog.Int("recipients", len(payload.To)), slog.String("subject", payload.Subject))
	return nil
}

func (m *Mailer) compose(p SendEmailPayload) []byte {
	contentType := "text/plain"
	if p.HTML {
		contentType = "text/html"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(p.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(p.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=UTF-8\r\n\r\n", contentType)
	b.WriteString(p.Body)
	return []byte(b.String())
}

func (m *Mailer) port() int {
	if m.cfg.Port > 0 {
		return m.cfg.Port
	}
	return 587
}

func (m *Mailer) log() *slog.Logger {
	if m != nil && m.logger != nil {
		return m.logger.With(slog.String("job", TaskTypeSendEmail))
	}
	return slog.Default().With(slog.String("job", TaskTypeSendEmail))
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
