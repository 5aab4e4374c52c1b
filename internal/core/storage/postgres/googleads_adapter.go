package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leadcast-lab/leadcast/internal/core/storage"
)

// GoogleAdsAdapter implements storage.GoogleAdsStore for PostgreSQL.
type GoogleAdsAdapter struct {
	db *sql.DB
}

func NewGoogleAdsAdapter(db *sql.DB) *GoogleAdsAdapter {
	return &GoogleAdsAdapter{db: db}
}

func (a *GoogleAdsAdapter) List(ctx context.Context) ([]storage.GoogleAdsTag, error) {
	rows, err := a.db.QueryContext(ctx, queryListGoogleAds)
	if err != nil {
		return nil, fmt.Errorf("failed to query google ads tags: %w", err)
	}
	defer rows.Close()

	var out []storage.GoogleAdsTag
	for rows.Next() {
		var tag storage.GoogleAdsTag
		if err := rows.Scan(&tag.ID, &tag.TagName, &tag.ConversionID,
			&tag.LeadLabel, &tag.ContactLabel, &tag.ScheduleLabel,
			&tag.Active, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan google ads tag: %w", err)
		}
		out = append(out, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating google ads tags: %w", err)
	}
	return out, nil
}

// GetActive returns the single active tag, or storage.ErrNotFound.
func (a *GoogleAdsAdapter) GetActive(ctx context.Context) (*storage.GoogleAdsTag, error) {
	var tag storage.GoogleAdsTag
	err := a.db.QueryRowContext(ctx, queryGetActiveGoogleAds).
		Scan(&tag.ID, &tag.TagName, &tag.ConversionID,
			&tag.LeadLabel, &tag.ContactLabel, &tag.ScheduleLabel,
			&tag.Active, &tag.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active google ads tag: %w", err)
	}
	return &tag, nil
}

func (a *GoogleAdsAdapter) Create(ctx context.Context, tag storage.GoogleAdsTag) (int64, error) {
	var id int64
	err := a.db.QueryRowContext(ctx, queryInsertGoogleAds,
		tag.TagName, tag.ConversionID, tag.LeadLabel, tag.ContactLabel, tag.ScheduleLabel, tag.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert google ads tag: %w", err)
	}
	return id, nil
}

// Activate makes one tag the single active tag.
func (a *GoogleAdsAdapter) Activate(ctx context.Context, id int64) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin activate tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, queryDeactivateGoogleAds); err != nil {
		return fmt.Errorf("failed to deactivate google ads tags: %w", err)
	}

	res, err := tx.ExecContext(ctx, queryActivateGoogleAds, id)
	if err != nil {
		return fmt.Errorf("failed to activate google ads tag: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	return tx.Commit()
}

func (a *GoogleAdsAdapter) Delete(ctx context.Context, id int64) error {
	res, err := a.db.ExecContext(ctx, queryDeleteGoogleAds, id)
	if err != nil {
		return fmt.Errorf("failed to delete google ads tag: %w", err)
	}
	return requireRow(res)
}

func (a *GoogleAdsAdapter) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, queryCountActiveGoogleAds).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active google ads tags: %w", err)
	}
	return n, nil
}
