package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/kafka"
)

// RebuiltEvent is published by the indexer after it has replaced the
// artifacts on disk.
type RebuiltEvent struct {
	IndexPath  string    `json:"index_path"`
	WeightsDir string    `json:"weights_dir,omitempty"`
	BoltPath   string    `json:"bolt_path,omitempty"`
	Documents  int       `json:"documents"`
	Lemmas     int       `json:"lemmas"`
	FinishedAt time.Time `json:"finished_at"`
}

// Event wraps e for kafka.Producer.Publish.
func (e RebuiltEvent) Event() kafka.Event {
	return kafka.Event{Key: e.IndexPath, Value: e}
}

// HandleRebuilt returns a handler that reloads h on every rebuild notice.
// Undecodable messages are logged and acknowledged so they are not
// redelivered forever. A rejected reload is acknowledged too; the previous
// snapshot keeps serving until the next notice.
func HandleRebuilt(h *Holder) kafka.MessageHandler {
	logger := slog.Default().With("component", "rebuild-listener")
	return func(ctx context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[RebuiltEvent](value)
		if err != nil {
			logger.Error("failed to decode rebuild event", "error", err, "key", string(key))
			return nil
		}
		logger.Info("rebuild notice received",
			"index_path", event.IndexPath,
			"documents", event.Documents,
			"lemmas", event.Lemmas,
			"finished_at", event.FinishedAt,
		)
		if _, err := h.Reload(ctx, TriggerKafka); err != nil {
			logger.Warn("reload after rebuild notice failed", "error", err)
		}
		return nil
	}
}
