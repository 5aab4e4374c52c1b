package postgres

import (
	"database/sql"
	"fmt"
	"time"

	v1 "github.com/leadcast-lab/leadcast/internal/api/v1"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanLeadRow scans one row in leadColumns order into a Lead. Compatible
// with both sql.Row and sql.Rows.
func scanLeadRow(row scanner) (*v1.Lead, error) {
	var lead v1.Lead
	var contactedAt, scheduledAt, paidAt sql.NullTime
	var scheduledFor sql.NullTime

	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.PhoneDigits, &lead.PhoneNeedsReview,
		&lead.ServiceType, &lead.Bedrooms, &lead.Bathrooms,
		&lead.Eircode, &lead.AddressLine1, &lead.AddressLine2, &lead.City, &lead.County, &lead.Country,
		&lead.PageURL, &lead.Referrer, &lead.UserAgent, &lead.IPAddress,
		&lead.FBCLID, &lead.FBP, &lead.FBC, &lead.GCLID, &lead.GBRAID, &lead.WBRAID,
		&lead.UTMSource, &lead.UTMMedium, &lead.UTMCampaign, &lead.UTMContent, &lead.UTMTerm,
		&contactedAt, &scheduledFor, &scheduledAt, &lead.ScheduledValue, &lead.PaidValue, &paidAt,
		&lead.LeadEvent.EventID, &lead.LeadEvent.Sent, &lead.LeadEvent.Response,
		&lead.ContactEvent.EventID, &lead.ContactEvent.Sent, &lead.ContactEvent.Response,
		&lead.ScheduleEvent.EventID, &lead.ScheduleEvent.Sent, &lead.ScheduleEvent.Response,
		&lead.PurchaseEvent.EventID, &lead.PurchaseEvent.Sent, &lead.PurchaseEvent.Response,
		&lead.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan lead row: %w", err)
	}

	lead.ContactedAt = nullableTime(contactedAt)
	lead.ScheduledAt = nullableTime(scheduledAt)
	lead.PaidAt = nullableTime(paidAt)
	if scheduledFor.Valid {
		lead.ScheduledFor = scheduledFor.Time.Format("2006-01-02")
	}

	return &lead, nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// stagePredicate maps a derived funnel stage to its SQL predicate.
func stagePredicate(stage v1.Stage) (string, error) {
	switch stage {
	case v1.StageLead:
		return predStageLead, nil
	case v1.StageContact:
		return predStageContact, nil
	case v1.StageSchedule:
		return predStageSchedule, nil
	case v1.StagePurchase:
		return predStagePurchase, nil
	default:
		return "", fmt.Errorf("unknown stage %q", stage)
	}
}

// conversionColumns holds the per-stage bookkeeping column names. Column
// names never come from user input.
type conversionColumns struct {
	id   string
	sent string
	resp string
}

func stageConversionColumns(stage v1.Stage) (conversionColumns, error) {
	switch stage {
	case v1.StageLead:
		return conversionColumns{"lead_event_id", "lead_event_sent", "lead_event_response"}, nil
	case v1.StageContact:
		return conversionColumns{"contact_event_id", "contact_event_sent", "contact_event_response"}, nil
	case v1.StageSchedule:
		return conversionColumns{"schedule_event_id", "schedule_event_sent", "schedule_event_response"}, nil
	case v1.StagePurchase:
		return conversionColumns{"purchase_event_id", "purchase_event_sent", "purchase_event_response"}, nil
	default:
		return conversionColumns{}, fmt.Errorf("unknown stage %q", stage)
	}
}

// resendEligibility is the predicate for whether a lead has ever reached the
// funnel stage whose event is being resent.
func resendEligibility(stage v1.Stage) (string, error) {
	switch stage {
	case v1.StageLead:
		return "TRUE", nil
	case v1.StageContact:
		return "contacted_at IS NOT NULL", nil
	case v1.StageSchedule:
		return "scheduled_for IS NOT NULL", nil
	case v1.StagePurchase:
		return "paid_value > 0", nil
	default:
		return "", fmt.Errorf("unknown stage %q", stage)
	}
}
