package incentive

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultCurrency is used for reminder amounts when none is configured.
const DefaultCurrency = "INR"

var reminderTemplate = template.Must(template.New("credit_note_reminder").Parse(`<p>Dear Purchase Team,</p>
<p>This is a reminder for a pending credit note:</p>
<table border="1" style="border-collapse: collapse; width: 100%;">
<tr><td><strong>Credit Note</strong></td><td>{{.Number}}</td></tr>
<tr><td><strong>Supplier</strong></td><td>{{.Supplier}}</td></tr>
<tr><td><strong>Amount</strong></td><td>{{.Amount}}</td></tr>
<tr><td><strong>Expected Settlement</strong></td><td>{{.ExpectedSettlement}}</td></tr>
</table>
<p>Please follow up with the supplier for settlement.</p>
<p>Best regards,<br>Purchase Management System</p>
`))

// FormatAmount renders amount with its ISO currency code and grouped digits.
func FormatAmount(amount decimal.Decimal, code string) (string, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("currency %q: %w", code, err)
	}
	value, _ := amount.Round(2).Float64()
	formatted := message.NewPrinter(language.English).Sprint(number.Decimal(value, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	return unit.String() + " " + formatted, nil
}

// ReminderKey is stable for a credit note on a given day so a retried run
// does not enqueue the same mail twice.
func ReminderKey(note CreditNote, on time.Time) string {
	name := fmt.Sprintf("credit-note:%d:%s", note.ID, on.Format("2006-01-02"))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// RenderReminder builds the reminder mail for note.
func RenderReminder(note CreditNote, recipients []string, currencyCode string, on time.Time) (Reminder, error) {
	amount, err := FormatAmount(note.Amount, currencyCode)
	if err != nil {
		return Reminder{}, err
	}
	expected := "-"
	if note.ExpectedSettlementDate != nil {
		expected = note.ExpectedSettlementDate.Format("2006-01-02")
	}
	var body bytes.Buffer
	err = reminderTemplate.Execute(&body, map[string]string{
		"Number":             note.Number,
		"Supplier":           note.Supplier,
		"Amount":             amount,
		"ExpectedSettlement": expected,
	})
	if err != nil {
		return Reminder{}, err
	}
	return Reminder{
		Key:        ReminderKey(note, on),
		Recipients: append([]string(nil), recipients...),
		Subject:    "Credit Note Reminder - " + note.Supplier,
		Body:       body.String(),
	}, nil
}

// MailQueue enqueues outbound mail for asynchronous delivery.
type MailQueue interface {
	EnqueueSendEmail(ctx context.Context, to []string, subject, body, taskID string) error
}

// MailNotifier delivers reminders through the mail queue.
type MailNotifier struct {
	queue MailQueue
}

// NewMailNotifier builds a MailNotifier.
func NewMailNotifier(queue MailQueue) *MailNotifier {
	return &MailNotifier{queue: queue}
}

// Notify enqueues the reminder mail.
func (n *MailNotifier) Notify(ctx context.Context, reminder Reminder) error {
	recipients := make([]string, 0, len(reminder.Recipients))
	for _, r := range reminder.Recipients {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	if len(recipients) == 0 {
		return nil
	}
	return n.queue.EnqueueSendEmail(ctx, recipients, reminder.Subject, reminder.Body, reminder.Key)
}
