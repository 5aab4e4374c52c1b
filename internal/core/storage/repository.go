package storage

import (
	"context"
	"errors"
	"time"

	v1 "github.com/leadcast-lab/leadcast/internal/api/v1"
	"github.com/leadcast-lab/leadcast/internal/core/capi"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique key already exists.
var ErrDuplicate = errors.New("record already exists")

// LeadFilter scopes a dashboard lead listing.
type LeadFilter struct {
	// Stage filters by derived funnel stage; empty means all.
	Stage v1.Stage

	// Search matches name, email or phone digits.
	Search string

	Limit  int
	Offset int
}

// ResendFilter selects leads for a bulk conversion resend.
type ResendFilter struct {
	// Stage selects which funnel event is being resent.
	Stage v1.Stage

	// Since bounds the lead creation time.
	Since time.Time

	// OnlyFailed restricts to leads whose last delivery for this stage
	// did not succeed.
	OnlyFailed bool

	Limit  int
	Offset int
}

// ContactUpdate refreshes contact details when a lead converts to the
// contact stage. Empty fields keep the stored values.
type ContactUpdate struct {
	Name        string
	Email       string
	Phone       string
	PhoneDigits string
	ServiceType string
	FBP         string
	FBC         string
	FBCLID      string
	PageURL     string
	UserAgent   string
	IPAddress   string
	EventID     string
}

// LeadStore persists lead records.
type LeadStore interface {
	Insert(ctx context.Context, lead *v1.Lead) error
	GetByID(ctx context.Context, id int64) (*v1.Lead, error)
	List(ctx context.Context, f LeadFilter) ([]*v1.Lead, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]*v1.Lead, error)
	ListIDsForResend(ctx context.Context, f ResendFilter) ([]int64, error)

	MarkContacted(ctx context.Context, id int64, at time.Time, upd ContactUpdate) error
	SetSchedule(ctx context.Context, id int64, scheduledFor string, value decimal.Decimal) error
	SetPurchase(ctx context.Context, id int64, value decimal.Decimal, paidAt time.Time) error

	// SetConversionState records the delivery bookkeeping for one funnel
	// stage after a dispatch attempt.
	SetConversionState(ctx context.Context, id int64, stage v1.Stage, state v1.ConversionState) error
}

// PixelRow is one stored destination credential set.
type PixelRow struct {
	ID          int64     `json:"id"`
	PixelID     string    `json:"pixel_id"`
	Name        string    `json:"name"`
	AccessToken string    `json:"-"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Destination converts the row into the pipeline's destination shape.
func (p PixelRow) Destination() capi.Destination {
	return capi.Destination{
		PixelID:     p.PixelID,
		Name:        p.Name,
		AccessToken: p.AccessToken,
		Active:      p.Active,
	}
}

// DestinationStore supplies and manages destination credentials. The
// pipeline only ever calls ListActive; the admin surface owns the rest.
type DestinationStore interface {
	ListActive(ctx context.Context) ([]capi.Destination, error)
	List(ctx context.Context) ([]PixelRow, error)
	Create(ctx context.Context, row PixelRow) (int64, error)
	GetByID(ctx context.Context, id int64) (*PixelRow, error)
	SetActive(ctx context.Context, id int64, active bool) error
	DeactivateAll(ctx context.Context) error
	ActivateLatest(ctx context.Context) (*PixelRow, error)
	UpdateToken(ctx context.Context, id int64, token string) error
	Delete(ctx context.Context, id int64) error
	CountActive(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
}

// GoogleAdsTag is one Google Ads conversion tag configuration.
type GoogleAdsTag struct {
	ID            int64     `json:"id"`
	TagName       string    `json:"tag_name"`
	ConversionID  string    `json:"conversion_id"`
	LeadLabel     string    `json:"lead_label,omitempty"`
	ContactLabel  string    `json:"contact_label,omitempty"`
	ScheduleLabel string    `json:"schedule_label,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// GoogleAdsStore manages Google Ads conversion tags. At most one tag is
// active at a time.
type GoogleAdsStore interface {
	List(ctx context.Context) ([]GoogleAdsTag, error)
	GetActive(ctx context.Context) (*GoogleAdsTag, error)
	Create(ctx context.Context, tag GoogleAdsTag) (int64, error)
	Activate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	CountActive(ctx context.Context) (int, error)
}

// DeliveryLogStore is the append-only audit trail of delivery outcomes.
type DeliveryLogStore interface {
	Append(ctx context.Context, entry capi.AuditEntry) error
}
