package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
)

type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type Recorder interface {
	Invalidated(topic string)
}

type changeEvent struct {
	UserID  string `json:"user_id"`
	OwnerID string `json:"owner_id"`
}

// InvalidationHandler drops the snapshot of the user a change event belongs to.
// Events that name no user are logged and skipped.
func InvalidationHandler(logger *slog.Logger, snapshots Invalidator, rec Recorder) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt changeEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Warn("malformed change event dropped", "topic", msg.Topic, "err", err)
			return nil
		}
		userID := strings.TrimSpace(evt.UserID)
		if userID == "" {
			userID = strings.TrimSpace(evt.OwnerID)
		}
		if userID == "" {
			logger.Debug("change event without user", "topic", msg.Topic)
			return nil
		}
		if err := snapshots.Invalidate(ctx, userID); err != nil {
			return err
		}
		if rec != nil {
			rec.Invalidated(msg.Topic)
		}
		logger.Debug("plan limits invalidated", "user_id", userID, "topic", msg.Topic)
		return nil
	}
}
