package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leadcast-lab/leadcast/internal/core/capi"
)

// DeliveryLogAdapter implements storage.DeliveryLogStore for PostgreSQL.
// The table is append-only; there is no update or delete path.
type DeliveryLogAdapter struct {
	db *sql.DB
}

func NewDeliveryLogAdapter(db *sql.DB) *DeliveryLogAdapter {
	return &DeliveryLogAdapter{db: db}
}

func (a *DeliveryLogAdapter) Append(ctx context.Context, entry capi.AuditEntry) error {
	_, err := a.db.ExecContext(ctx, queryAppendDeliveryLog,
		entry.Time, entry.EventName, entry.EventID, entry.PixelID,
		entry.Status, entry.OK, entry.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to append delivery log: %w", err)
	}
	return nil
}
