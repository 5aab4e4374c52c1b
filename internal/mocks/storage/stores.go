// Package storagemocks provides configurable in-memory test doubles for
// the storage interfaces. Unset function fields fall back to benign
// defaults so tests only wire what they assert on.
package storagemocks

import (
	"context"
	"time"

	v1 "github.com/leadcast-lab/leadcast/internal/api/v1"
	"github.com/leadcast-lab/leadcast/internal/core/capi"
	"github.com/leadcast-lab/leadcast/internal/core/storage"
	"github.com/shopspring/decimal"
)

// LeadStore records every call and delegates to the configured funcs.
type LeadStore struct {
	InsertFunc             func(ctx context.Context, lead *v1.Lead) error
	GetByIDFunc            func(ctx context.Context, id int64) (*v1.Lead, error)
	ListFunc               func(ctx context.Context, f storage.LeadFilter) ([]*v1.Lead, error)
	ListSinceFunc          func(ctx context.Context, since time.Time, limit int) ([]*v1.Lead, error)
	ListIDsForResendFunc   func(ctx context.Context, f storage.ResendFilter) ([]int64, error)
	MarkContactedFunc      func(ctx context.Context, id int64, at time.Time, upd storage.ContactUpdate) error
	SetScheduleFunc        func(ctx context.Context, id int64, scheduledFor string, value decimal.Decimal) error
	SetPurchaseFunc        func(ctx context.Context, id int64, value decimal.Decimal, paidAt time.Time) error
	SetConversionStateFunc func(ctx context.Context, id int64, stage v1.Stage, state v1.ConversionState) error

	Inserted    []*v1.Lead
	Conversions []RecordedConversion
}

// RecordedConversion captures one SetConversionState call.
type RecordedConversion struct {
	LeadID int64
	Stage  v1.Stage
	State  v1.ConversionState
}

func (m *LeadStore) Insert(ctx context.Context, lead *v1.Lead) error {
	m.Inserted = append(m.Inserted, lead)
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, lead)
	}
	lead.ID = int64(len(m.Inserted))
	return nil
}

func (m *LeadStore) GetByID(ctx context.Context, id int64) (*v1.Lead, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, storage.ErrNotFound
}

func (m *LeadStore) List(ctx context.Context, f storage.LeadFilter) ([]*v1.Lead, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, f)
	}
	return nil, nil
}

func (m *LeadStore) ListSince(ctx context.Context, since time.Time, limit int) ([]*v1.Lead, error) {
	if m.ListSinceFunc != nil {
		return m.ListSinceFunc(ctx, since, limit)
	}
	return nil, nil
}

func (m *LeadStore) ListIDsForResend(ctx context.Context, f storage.ResendFilter) ([]int64, error) {
	if m.ListIDsForResendFunc != nil {
		return m.ListIDsForResendFunc(ctx, f)
	}
	return nil, nil
}

func (m *LeadStore) MarkContacted(ctx context.Context, id int64, at time.Time, upd storage.ContactUpdate) error {
	if m.MarkContactedFunc != nil {
		return m.MarkContactedFunc(ctx, id, at, upd)
	}
	return nil
}

func (m *LeadStore) SetSchedule(ctx context.Context, id int64, scheduledFor string, value decimal.Decimal) error {
	if m.SetScheduleFunc != nil {
		return m.SetScheduleFunc(ctx, id, scheduledFor, value)
	}
	return nil
}

func (m *LeadStore) SetPurchase(ctx context.Context, id int64, value decimal.Decimal, paidAt time.Time) error {
	if m.SetPurchaseFunc != nil {
		return m.SetPurchaseFunc(ctx, id, value, paidAt)
	}
	return nil
}

func (m *LeadStore) SetConversionState(ctx context.Context, id int64, stage v1.Stage, state v1.ConversionState) error {
	m.Conversions = append(m.Conversions, RecordedConversion{LeadID: id, Stage: stage, State: state})
	if m.SetConversionStateFunc != nil {
		return m.SetConversionStateFunc(ctx, id, stage, state)
	}
	return nil
}

// DestinationStore serves a fixed destination list; mutations record into
// the struct for assertion.
type DestinationStore struct {
	Active []capi.Destination
	Rows   []storage.PixelRow

	ListActiveErr      error
	CreateFunc         func(ctx context.Context, row storage.PixelRow) (int64, error)
	SetActiveFunc      func(ctx context.Context, id int64, active bool) error
	DeleteFunc         func(ctx context.Context, id int64) error
	ActivateLatestFunc func(ctx context.Context) (*storage.PixelRow, error)

	Deactivated bool
}

func (m *DestinationStore) ListActive(ctx context.Context) ([]capi.Destination, error) {
	if m.ListActiveErr != nil {
		return nil, m.ListActiveErr
	}
	return m.Active, nil
}

func (m *DestinationStore) List(ctx context.Context) ([]storage.PixelRow, error) {
	return m.Rows, nil
}

func (m *DestinationStore) Create(ctx context.Context, row storage.PixelRow) (int64, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, row)
	}
	m.Rows = append(m.Rows, row)
	return int64(len(m.Rows)), nil
}

func (m *DestinationStore) GetByID(ctx context.Context, id int64) (*storage.PixelRow, error) {
	for i := range m.Rows {
		if m.Rows[i].ID == id {
			return &m.Rows[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *DestinationStore) SetActive(ctx context.Context, id int64, active bool) error {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, id, active)
	}
	for i := range m.Rows {
		if m.Rows[i].ID == id {
			m.Rows[i].Active = active
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *DestinationStore) DeactivateAll(ctx context.Context) error {
	m.Deactivated = true
	for i := range m.Rows {
		m.Rows[i].Active = false
	}
	return nil
}

func (m *DestinationStore) ActivateLatest(ctx context.Context) (*storage.PixelRow, error) {
	if m.ActivateLatestFunc != nil {
		return m.ActivateLatestFunc(ctx)
	}
	if len(m.Rows) == 0 {
		return nil, storage.ErrNotFound
	}
	last := &m.Rows[len(m.Rows)-1]
	last.Active = true
	return last, nil
}

func (m *DestinationStore) UpdateToken(ctx context.Context, id int64, token string) error {
	for i := range m.Rows {
		if m.Rows[i].ID == id {
			m.Rows[i].AccessToken = token
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *DestinationStore) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	for i := range m.Rows {
		if m.Rows[i].ID == id {
			m.Rows = append(m.Rows[:i], m.Rows[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *DestinationStore) CountActive(ctx context.Context) (int, error) {
	n := 0
	for _, r := range m.Rows {
		if r.Active {
			n++
		}
	}
	if n == 0 && len(m.Active) > 0 {
		n = len(m.Active)
	}
	return n, nil
}

func (m *DestinationStore) Count(ctx context.Context) (int, error) {
	return len(m.Rows), nil
}

// GoogleAdsStore is an in-memory GoogleAdsStore.
type GoogleAdsStore struct {
	Tags []storage.GoogleAdsTag
}

func (m *GoogleAdsStore) List(ctx context.Context) ([]storage.GoogleAdsTag, error) {
	return m.Tags, nil
}

func (m *GoogleAdsStore) GetActive(ctx context.Context) (*storage.GoogleAdsTag, error) {
	for i := range m.Tags {
		if m.Tags[i].Active {
			return &m.Tags[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *GoogleAdsStore) Create(ctx context.Context, tag storage.GoogleAdsTag) (int64, error) {
	tag.ID = int64(len(m.Tags) + 1)
	m.Tags = append(m.Tags, tag)
	return tag.ID, nil
}

func (m *GoogleAdsStore) Activate(ctx context.Context, id int64) error {
	found := false
	for i := range m.Tags {
		m.Tags[i].Active = m.Tags[i].ID == id
		if m.Tags[i].ID == id {
			found = true
		}
	}
	if !found {
		return storage.ErrNotFound
	}
	return nil
}

func (m *GoogleAdsStore) Delete(ctx context.Context, id int64) error {
	for i := range m.Tags {
		if m.Tags[i].ID == id {
			m.Tags = append(m.Tags[:i], m.Tags[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *GoogleAdsStore) CountActive(ctx context.Context) (int, error) {
	n := 0
	for _, t := range m.Tags {
		if t.Active {
			n++
		}
	}
	return n, nil
}

// DeliveryLog collects audit entries.
type DeliveryLog struct {
	Entries []capi.AuditEntry
	Err     error
}

func (m *DeliveryLog) Append(ctx context.Context, entry capi.AuditEntry) error {
	if m.Err != nil {
		return m.Err
	}
	m.Entries = append(m.Entries, entry)
	return nil
}
