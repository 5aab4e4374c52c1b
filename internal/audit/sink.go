// Package audit records delivery outcomes to the structured log and,
// when a store is configured, to the append-only delivery_log table.
package audit

import (
	"context"
	"log/slog"

	"github.com/leadcast-lab/leadcast/internal/core/capi"
	"github.com/leadcast-lab/leadcast/internal/core/storage"
)

// Sink implements capi.AuditSink. A nil store keeps log-only mode.
type Sink struct {
	store storage.DeliveryLogStore
}

func NewSink(store storage.DeliveryLogStore) *Sink {
	return &Sink{store: store}
}

// Record writes one delivery outcome. A failed append never propagates:
// the audit trail must not break delivery.
func (s *Sink) Record(ctx context.Context, entry capi.AuditEntry) {
	if entry.OK {
		slog.Info("delivery outcome",
			"event_name", entry.EventName,
			"event_id", entry.EventID,
			"pixel_id", entry.PixelID,
			"status", entry.Status,
		)
	} else {
		slog.Warn("delivery outcome",
			"event_name", entry.EventName,
			"event_id", entry.EventID,
			"pixel_id", entry.PixelID,
			"status", entry.Status,
			"error", entry.Error,
		)
	}

	if s.store == nil {
		return
	}
	if err := s.store.Append(ctx, entry); err != nil {
		slog.Error("failed to append delivery log entry",
			"event_id", entry.EventID,
			"pixel_id", entry.PixelID,
			"error", err,
		)
	}
}
