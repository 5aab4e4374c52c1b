package admin

import (
	"fmt"
	"time"

	v1 "github.com/leadcast-lab/leadcast/internal/api/v1"
	"github.com/leadcast-lab/leadcast/internal/core/capi"
	"github.com/shopspring/decimal"
)

// stageEventName maps a funnel stage to the provider event it emits.
func stageEventName(stage v1.Stage) capi.EventName {
	switch stage {
	case v1.StageContact:
		return capi.EventContact
	case v1.StageSchedule:
		return capi.EventSchedule
	case v1.StagePurchase:
		return capi.EventPurchase
	default:
		return capi.EventLead
	}
}

// stageActionSource: lead and contact conversions happened on the website;
// schedule and purchase are back-office facts.
func stageActionSource(stage v1.Stage) capi.ActionSource {
	switch stage {
	case v1.StageSchedule, v1.StagePurchase:
		return capi.SourceSystemGenerated
	default:
		return capi.SourceWebsite
	}
}

// stageEventTime anchors the event to when the stage was actually reached,
// falling back to the lead's creation time.
func stageEventTime(lead *v1.Lead, stage v1.Stage) int64 {
	var at *time.Time
	switch stage {
	case v1.StageContact:
		at = lead.ContactedAt
	case v1.StageSchedule:
		at = lead.ScheduledAt
	case v1.StagePurchase:
		at = lead.PaidAt
	}
	if at != nil {
		return at.Unix()
	}
	if !lead.CreatedAt.IsZero() {
		return lead.CreatedAt.Unix()
	}
	return 0
}

// stageValue returns the money amount attached to a stage, zero when the
// stage carries none.
func stageValue(lead *v1.Lead, stage v1.Stage) decimal.Decimal {
	switch stage {
	case v1.StageSchedule:
		return lead.ScheduledValue
	case v1.StagePurchase:
		return lead.PaidValue
	default:
		return decimal.Zero
	}
}

// eventForStage rebuilds the conversion event for one funnel stage from the
// stored lead record. Used by stage marking, resends and the export.
func (s *Service) eventForStage(lead *v1.Lead, stage v1.Stage, eventID string) capi.LogicalEvent {
	custom := map[string]any{
		"service_type": lead.ServiceType,
		"county":       lead.County,
	}
	if value := stageValue(lead, stage); value.IsPositive() {
		custom["value"], _ = value.Float64()
		custom["currency"] = "EUR"
	}

	return capi.LogicalEvent{
		EventName:      stageEventName(stage),
		EventTime:      stageEventTime(lead, stage),
		EventID:        eventID,
		EventSourceURL: lead.PageURL,
		ActionSource:   stageActionSource(stage),
		TestEventCode:  s.testEventCode,
		User:           lead.RawIdentity(),
		Custom:         custom,
	}
}

// eventIDForResend reuses the stored deduplication key so a resend
// coalesces with the original delivery; only a lead that never got a key
// gets a fresh one.
func eventIDForResend(lead *v1.Lead, stage v1.Stage) string {
	if id := lead.Conversion(stage).EventID; id != "" {
		return id
	}
	return capi.NewEventID(fmt.Sprintf("%s_resend", stage))
}
