package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func mailTask(t *testing.T, payload SendEmailPayload) *asynq.Task {
	t.Helper()
	task, err := NewSendEmailTask(payload)
	require.NoError(t, err)
	return task
}

func TestMailerSendsHTMLMail(t *testing.T) {
	var got capturedMail
	m := NewMailer(MailConfig{Host: "smtp.local", Port: 2525, From: "erp@example.com"}, nil).
		WithSender(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			got = capturedMail{addr: addr, from: from, to: to, msg: string(msg)}
			return nil
		})

	err := m.Handle(context.Background(), mailTask(t, SendEmailPayload{
		To:      []string{"pm@example.com"},
		Subject: "Credit Note Reminder - ACME\r\nBcc: x@example.com",
		Body:    "<p>hi</p>",
		HTML:    true,
	}))
	require.NoError(t, err)
	require.Equal(t, "smtp.local:2525", got.addr)
	require.Equal(t, []string{"pm@example.com"}, got.to)
	require.Contains(t, got.msg, "Content-Type: text/html; charset=UTF-8")
	require.Contains(t, got.msg, "Subject: Credit Note Reminder - ACME  Bcc: x@example.com\r\n")
	require.Contains(t, got.msg, "<p>hi</p>")
}

func TestMailerDropsWhenDisabled(t *testing.T) {
	called := false
	m := NewMailer(MailConfig{}, nil).WithSender(func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	})
	require.NoError(t, m.Handle(context.Background(), mailTask(t, SendEmailPayload{To: []string{"a@example.com"}})))
	require.False(t, called)
}

func TestMailerSkipsRetryOnBadPayload(t *testing.T) {
	m := NewMailer(MailConfig{Host: "smtp.local", From: "erp@example.com"}, nil)
	err := m.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	body, _ := json.Marshal(SendEmailPayload{})
	err = m.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, body))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestMailerReturnsTransportErrors(t *testing.T) {
	boom := errors.New("relay refused")
	m := NewMailer(MailConfig{Host: "smtp.local", From: "erp@example.com"}, nil).
		WithSender(func(string, smtp.Auth, string, []string, []byte) error { return boom })
	err := m.Handle(context.Background(), mailTask(t, SendEmailPayload{To: []string{"a@example.com"}}))
	require.ErrorIs(t, err, boom)
}

func TestNewSendEmailTaskRequiresRecipients(t *testing.T) {
	_, err := NewSendEmailTask(SendEmailPayload{Subject: "x"})
	require.Error(t, err)
}
