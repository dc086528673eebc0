package jobs

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskIncentiveDaily refreshes promotion flags and sends credit note reminders.
	TaskIncentiveDaily = "incentive:daily"
	// TaskIncentiveWeekly recomputes supplier turnover snapshots.
	TaskIncentiveWeekly = "incentive:weekly"
	// TaskIncentiveCleanup purges expired promotions and archives old snapshots.
	TaskIncentiveCleanup = "incentive:cleanup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	HTML    bool     `json:"html"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if len(payload.To) == 0 {
		return nil, errors.New("send email: recipients required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewIncentiveTask creates the task for one of the incentive runs.
func NewIncentiveTask(taskType string) *asynq.Task {
	return asynq.NewTask(taskType, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}
