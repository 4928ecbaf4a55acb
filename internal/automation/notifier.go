package automation

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Notification is the payload a NOTIFY trigger emits.
type Notification struct {
	TriggerID   uint      `json:"trigger_id"`
	TriggerName string    `json:"trigger_name"`
	Message     string    `json:"message"`
	Recipients  []string  `json:"recipients,omitempty"`
	TaskID      *uint     `json:"task_id,omitempty"`
	Data        EventData `json:"data,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notifier delivers notifications to whatever side channel is configured.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// LogNotifier writes notifications to the log; used when no live channel is
// configured.
func LogNotifier(logger *logrus.Logger) Notifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return NotifierFunc(func(_ context.Context, n Notification) error {
		logger.WithFields(logrus.Fields{
			"trigger_id": n.TriggerID,
			"recipients": n.Recipients,
			"task_id":    n.TaskID,
		}).Info(n.Message)
		return nil
	})
}
