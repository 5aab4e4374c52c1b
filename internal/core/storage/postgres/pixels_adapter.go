package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leadcast-lab/leadcast/internal/core/capi"
	"github.com/leadcast-lab/leadcast/internal/core/storage"
	"github.com/lib/pq"
)

// PixelAdapter implements storage.DestinationStore for PostgreSQL.
type PixelAdapter struct {
	db *sql.DB
}

func NewPixelAdapter(db *sql.DB) *PixelAdapter {
	return &PixelAdapter{db: db}
}

// ListActive returns the destinations the fan-out engine should address,
// newest first.
func (a *PixelAdapter) ListActive(ctx context.Context) ([]capi.Destination, error) {
	rows, err := a.listRows(ctx, queryListActivePixels)
	if err != nil {
		return nil, err
	}

	dests := make([]capi.Destination, 0, len(rows))
	for _, row := range rows {
		dests = append(dests, row.Destination())
	}
	return dests, nil
}

func (a *PixelAdapter) List(ctx context.Context) ([]storage.PixelRow, error) {
	return a.listRows(ctx, queryListPixels)
}

func (a *PixelAdapter) listRows(ctx context.Context, query string) ([]storage.PixelRow, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pixels: %w", err)
	}
	defer rows.Close()

	var out []storage.PixelRow
	for rows.Next() {
		var row storage.PixelRow
		if err := rows.Scan(&row.ID, &row.PixelID, &row.Name, &row.AccessToken, &row.Active, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pixel row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pixels: %w", err)
	}
	return out, nil
}

// Create inserts a new credential set. Duplicate pixel ids map to
// storage.ErrDuplicate.
func (a *PixelAdapter) Create(ctx context.Context, row storage.PixelRow) (int64, error) {
	var id int64
	err := a.db.QueryRowContext(ctx, queryInsertPixel,
		row.PixelID, row.Name, row.AccessToken, row.Active,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return 0, storage.ErrDuplicate
		}
		return 0, fmt.Errorf("failed to insert pixel: %w", err)
	}

	slog.Info("[Postgres] Pixel created", "id", id, "pixel_id", row.PixelID)
	return id, nil
}

func (a *PixelAdapter) GetByID(ctx context.Context, id int64) (*storage.PixelRow, error) {
	var row storage.PixelRow
	err := a.db.QueryRowContext(ctx, queryGetPixelByID, id).
		Scan(&row.ID, &row.PixelID, &row.Name, &row.AccessToken, &row.Active, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pixel: %w", err)
	}
	return &row, nil
}

func (a *PixelAdapter) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := a.db.ExecContext(ctx, querySetPixelActive, id, active)
	if err != nil {
		return fmt.Errorf("failed to set pixel active: %w", err)
	}
	return requireRow(res)
}

func (a *PixelAdapter) DeactivateAll(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, queryDeactivatePixels); err != nil {
		return fmt.Errorf("failed to deactivate pixels: %w", err)
	}
	return nil
}

// ActivateLatest reactivates the newest credential set. Returns
// storage.ErrNotFound when the table is empty.
func (a *PixelAdapter) ActivateLatest(ctx context.Context) (*storage.PixelRow, error) {
	var row storage.PixelRow
	err := a.db.QueryRowContext(ctx, queryActivateLatestPixel).
		Scan(&row.ID, &row.PixelID, &row.Name, &row.AccessToken, &row.Active, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to activate latest pixel: %w", err)
	}

	slog.Info("[Postgres] Auto-recovery reactivated pixel", "id", row.ID, "pixel_id", row.PixelID)
	return &row, nil
}

func (a *PixelAdapter) UpdateToken(ctx context.Context, id int64, token string) error {
	res, err := a.db.ExecContext(ctx, queryUpdatePixelToken, id, token)
	if err != nil {
		return fmt.Errorf("failed to update pixel token: %w", err)
	}
	return requireRow(res)
}

func (a *PixelAdapter) Delete(ctx context.Context, id int64) error {
	res, err := a.db.ExecContext(ctx, queryDeletePixel, id)
	if err != nil {
		return fmt.Errorf("failed to delete pixel: %w", err)
	}
	return requireRow(res)
}

func (a *PixelAdapter) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, queryCountActivePixels).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active pixels: %w", err)
	}
	return n, nil
}

func (a *PixelAdapter) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, queryCountPixels).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pixels: %w", err)
	}
	return n, nil
}
