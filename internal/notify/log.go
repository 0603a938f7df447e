package notify

import (
	"context"
	"fmt"
	"os"

	"orderrpa/internal/logger"
)

// LogNotifier simulates email delivery by logging the message.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, msg Message) error {
	if msg.Attachment != "" {
		if _, err := os.Stat(msg.Attachment); err != nil {
			return fmt.Errorf("attachment: %w", err)
		}
	}
	logger.Info("email simulated",
		"kind", msg.Kind,
		"to", msg.To,
		"subject", msg.Subject,
		"attachment", msg.Attachment,
		"run_id", msg.RunID,
	)
	return nil
}
