package v1

import (
	"fmt"
	"strings"
	"time"

	"github.com/leadcast-lab/leadcast/internal/core/identity"
	"github.com/shopspring/decimal"
)

// Stage is the funnel position of a lead, derived from its record rather
// than stored.
type Stage string

const (
	StageLead     Stage = "lead"
	StageContact  Stage = "contact"
	StageSchedule Stage = "schedule"
	StagePurchase Stage = "purchase"
)

// ConversionState tracks the delivery bookkeeping of one funnel event on a
// lead: the idempotency key sent to the provider, whether the last delivery
// succeeded, and the stored delivery result for diagnostics.
type ConversionState struct {
	EventID  string `json:"event_id,omitempty"`
	Sent     bool   `json:"sent"`
	Response string `json:"response,omitempty"`
}

// Lead is one stored lead record. The schema is fixed and versioned; there
// is no runtime column discovery.
type Lead struct {
	ID int64 `json:"id"`

	// Contact fields.
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	PhoneDigits      string `json:"phone_digits"`
	PhoneNeedsReview bool   `json:"phone_needs_review,omitempty"`

	// Enquiry details.
	ServiceType string `json:"service_type,omitempty"`
	Bedrooms    string `json:"bedrooms,omitempty"`
	Bathrooms   string `json:"bathrooms,omitempty"`

	// Address.
	Eircode      string `json:"eircode,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	County       string `json:"county,omitempty"`
	Country      string `json:"country,omitempty"`

	// Session/attribution capture.
	PageURL   string `json:"page_url,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	FBCLID string `json:"fbclid,omitempty"`
	FBP    string `json:"fbp,omitempty"`
	FBC    string `json:"fbc,omitempty"`
	GCLID  string `json:"gclid,omitempty"`
	GBRAID string `json:"gbraid,omitempty"`
	WBRAID string `json:"wbraid,omitempty"`

	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`

	// Funnel progress.
	ContactedAt    *time.Time      `json:"contacted_at,omitempty"`
	ScheduledFor   string          `json:"scheduled_for,omitempty"` // YYYY-MM-DD
	ScheduledAt    *time.Time      `json:"scheduled_at,omitempty"`
	ScheduledValue decimal.Decimal `json:"scheduled_value"`
	PaidValue      decimal.Decimal `json:"paid_value"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`

	// Per-stage conversion delivery bookkeeping.
	LeadEvent     ConversionState `json:"lead_event"`
	ContactEvent  ConversionState `json:"contact_event"`
	ScheduleEvent ConversionState `json:"schedule_event"`
	PurchaseEvent ConversionState `json:"purchase_event"`

	CreatedAt time.Time `json:"created_at"`
}

// Stage derives the lead's current funnel position. Purchase wins over
// schedule, schedule over contact.
func (l *Lead) Stage() Stage {
	switch {
	case l.PaidValue.IsPositive():
		return StagePurchase
	case l.ScheduledFor != "":
		return StageSchedule
	case l.ContactedAt != nil:
		return StageContact
	default:
		return StageLead
	}
}

// Conversion returns the bookkeeping state for one funnel stage.
func (l *Lead) Conversion(stage Stage) *ConversionState {
	switch stage {
	case StageContact:
		return &l.ContactEvent
	case StageSchedule:
		return &l.ScheduleEvent
	case StagePurchase:
		return &l.PurchaseEvent
	default:
		return &l.LeadEvent
	}
}

// RawIdentity assembles the matching identity from the stored record, for
// rebuilding conversion events after the fact.
func (l *Lead) RawIdentity() identity.RawIdentity {
	return identity.RawIdentity{
		Name:            l.Name,
		Email:           l.Email,
		Phone:           l.PhoneDigits,
		Zip:             l.Eircode,
		City:            l.City,
		State:           l.County,
		Country:         l.Country,
		FBP:             l.FBP,
		FBC:             l.FBC,
		ClientIP:        l.IPAddress,
		ClientUserAgent: l.UserAgent,
	}
}

// LeadSubmission is the inbound lead form payload.
type LeadSubmission struct {
	Data SubmissionData `json:"data"`
	Meta SubmissionMeta `json:"meta"`

	// EventID lets the browser pre-assign the dedup key so the pixel-side
	// and server-side Lead events coalesce on the provider.
	EventID       string `json:"event_id,omitempty"`
	TestEventCode string `json:"test_event_code,omitempty"`
}

// SubmissionData carries the visitor-entered form fields.
type SubmissionData struct {
	Name      string `json:"name"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`

	ServiceType string `json:"service_type,omitempty"`
	Bedrooms    string `json:"bedrooms,omitempty"`
	Bathrooms   string `json:"bathrooms,omitempty"`

	Eircode      string `json:"eircode,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	County       string `json:"county,omitempty"`
	Country      string `json:"country,omitempty"`
}

// SubmissionMeta carries the browser-captured tracking context.
type SubmissionMeta struct {
	PageURL   string `json:"page_url,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	FBCLID string `json:"fbclid,omitempty"`
	FBP    string `json:"fbp,omitempty"`
	FBC    string `json:"fbc,omitempty"`
	GCLID  string `json:"gclid,omitempty"`
	GBRAID string `json:"gbraid,omitempty"`
	WBRAID string `json:"wbraid,omitempty"`

	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`

	TestEventCode string `json:"test_event_code,omitempty"`
}

// FullName builds the combined name when only first/last were supplied.
func (d SubmissionData) FullName() string {
	if strings.TrimSpace(d.Name) != "" {
		return strings.TrimSpace(d.Name)
	}
	return strings.TrimSpace(strings.TrimSpace(d.FirstName) + " " + strings.TrimSpace(d.LastName))
}

// Validate ensures the submission carries the fields the pipeline reads.
// Field-shape problems beyond presence are the pipeline's job to degrade,
// not the endpoint's to reject.
func (s *LeadSubmission) Validate() error {
	if s.Data.FullName() == "" {
		return fmt.Errorf("missing_name")
	}
	if strings.TrimSpace(s.Data.Email) == "" {
		return fmt.Errorf("missing_email")
	}
	if strings.TrimSpace(s.Data.Phone) == "" {
		return fmt.Errorf("missing_phone")
	}
	return nil
}

// ContactRequest marks a lead as contacted and refreshes its contact
// details from the conversation context.
type ContactRequest struct {
	LeadID  int64  `json:"lead_id"`
	EventID string `json:"event_id,omitempty"`

	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	ServiceType string `json:"service_type,omitempty"`

	FBP     string `json:"fbp,omitempty"`
	FBC     string `json:"fbc,omitempty"`
	FBCLID  string `json:"fbclid,omitempty"`
	PageURL string `json:"page_url,omitempty"`
}
