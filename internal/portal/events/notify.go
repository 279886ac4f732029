package events

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

var notificationSubjects = map[EventType]string{
	CodeRequestSubmitted:   "New access code request",
	JobPostingSubmitted:    "New job posting submitted",
	JobApplicationReceived: "New job application received",
}

// NotifyHandler returns a Handler that logs an admin notification for every
// new public submission and ignores other event types.
func NotifyHandler(logger *zap.Logger) Handler {
	logger = logger.Named("notifier")
	return func(_ context.Context, event Event) error {
		subject, ok := notificationSubjects[event.Type]
		if !ok {
			logger.Debug("Ignoring event", zap.String("event_type", string(event.Type)))
			return nil
		}

		var fields map[string]any
		if len(event.Payload) > 0 {
			if err := json.Unmarshal(event.Payload, &fields); err != nil {
				return fmt.Errorf("decode %s payload: %w", event.Type, err)
			}
		}

		logger.Info(subject,
			zap.String("event_type", string(event.Type)),
			zap.String("key", event.Key),
			zap.Time("occurred_at", event.OccurredAt),
			zap.Any("company_name", fields["company_name"]),
			zap.Any("contact_email", fields["email"]),
		)
		return nil
	}
}
