package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	v1 "github.com/leadcast-lab/leadcast/internal/api/v1"
	"github.com/leadcast-lab/leadcast/internal/core/capi"
	httperr "github.com/leadcast-lab/leadcast/internal/core/errors"
	"github.com/leadcast-lab/leadcast/internal/core/storage"
	"github.com/shopspring/decimal"
)

const (
	defaultListLimit  = 50
	maxListLimit      = 500
	defaultBulkLimit  = 100
	maxBulkLimit      = 500
	healthWindowHours = 24 * 7
)

func parseIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpValidationError, "invalid id")
		return 0, false
	}
	return id, true
}

func parseStageQuery(raw string) (v1.Stage, bool) {
	switch v1.Stage(raw) {
	case v1.StageLead, v1.StageContact, v1.StageSchedule, v1.StagePurchase:
		return v1.Stage(raw), true
	case "":
		return "", true
	}
	return "", false
}

func clampLimit(raw string, def, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// ListLeadsHandler returns the dashboard lead listing with optional stage,
// search and pagination parameters.
func (s *Service) ListLeadsHandler(c *gin.Context) {
	stage, ok := parseStageQuery(c.Query("stage"))
	if !ok {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpValidationError, "unknown stage")
		return
	}

	offset, _ := strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}

	filter := storage.LeadFilter{
		Stage:  stage,
		Search: c.Query("search"),
		Limit:  clampLimit(c.Query("limit"), defaultListLimit, maxListLimit),
		Offset: offset,
	}

	leads, err := s.leads.List(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Failed to list leads", "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to list leads")
		return
	}

	items := make([]leadSummary, 0, len(leads))
	for _, lead := range leads {
		items = append(items, summarize(lead))
	}
	c.JSON(http.StatusOK, gin.H{"leads": items, "count": len(items), "offset": offset})
}

// leadSummary is the listing row: the full record minus delivery response
// blobs, plus the derived stage.
type leadSummary struct {
	*v1.Lead
	Stage v1.Stage `json:"stage"`
}

func summarize(lead *v1.Lead) leadSummary {
	return leadSummary{Lead: lead, Stage: lead.Stage()}
}

// GetLeadHandler returns one lead with its derived stage.
func (s *Service) GetLeadHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	lead, err := s.leads.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeErrorType(c, http.StatusNotFound, httperr.HttpNotFoundError, "Lead not found")
			return
		}
		slog.Error("Failed to load lead", "lead_id", id, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to load lead")
		return
	}

	c.JSON(http.StatusOK, summarize(lead))
}

type scheduleRequest struct {
	ScheduledFor string          `json:"scheduled_for"` // YYYY-MM-DD
	Value        decimal.Decimal `json:"value"`
	EventID      string          `json:"event_id,omitempty"`
}

// ScheduleHandler marks a lead as having a booked appointment and sends the
// Schedule conversion.
func (s *Service) ScheduleHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpInvalidJsonError, "Invalid JSON body")
		return
	}
	if _, err := time.Parse("2006-01-02", req.ScheduledFor); err != nil {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpValidationError, "scheduled_for must be YYYY-MM-DD")
		return
	}
	if req.Value.IsNegative() {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpValidationError, "value must not be negative")
		return
	}

	ctx := c.Request.Context()
	if err := s.leads.SetSchedule(ctx, id, req.ScheduledFor, req.Value); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeErrorType(c, http.StatusNotFound, httperr.HttpNotFoundError, "Lead not found")
			return
		}
		slog.Error("Failed to set schedule", "lead_id", id, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to set schedule")
		return
	}

	s.markStage(c, id, v1.StageSchedule, req.EventID)
}

type purchaseRequest struct {
	Value   decimal.Decimal `json:"value"`
	PaidAt  *time.Time      `json:"paid_at,omitempty"`
	EventID string          `json:"event_id,omitempty"`
}

// PurchaseHandler records the payment and sends the Purchase conversion.
func (s *Service) PurchaseHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpInvalidJsonError, "Invalid JSON body")
		return
	}
	if !req.Value.IsPositive() {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpValidationError, "value must be positive")
		return
	}

	paidAt := time.Now().UTC()
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
	}

	ctx := c.Request.Context()
	if err := s.leads.SetPurchase(ctx, id, req.Value, paidAt); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeErrorType(c, http.StatusNotFound, httperr.HttpNotFoundError, "Lead not found")
			return
		}
		slog.Error("Failed to set purchase", "lead_id", id, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to set purchase")
		return
	}

	s.markStage(c, id, v1.StagePurchase, req.EventID)
}

// markStage reloads the updated lead, delivers the stage conversion and
// responds with the delivery summary.
func (s *Service) markStage(c *gin.Context, id int64, stage v1.Stage, eventID string) {
	ctx := c.Request.Context()

	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		slog.Error("Failed to reload lead after stage update", "lead_id", id, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to load lead")
		return
	}

	if eventID == "" {
		eventID = capi.NewEventID(string(stage))
	}

	result := s.deliver(ctx, s.eventForStage(lead, stage, eventID))
	s.recordConversion(ctx, id, stage, eventID, result)

	c.JSON(http.StatusOK, gin.H{
		"id":       id,
		"stage":    stage,
		"event_id": eventID,
		"delivery": gin.H{
			"ok":            result.OK,
			"success_count": result.Succeeded,
			"failure_count": result.Failed,
		},
	})
}

type resendRequest struct {
	Stage string `json:"stage"`
}

// ResendHandler re-delivers one stage conversion for a single lead, reusing
// the stored event id so the provider deduplicates.
func (s *Service) ResendHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req resendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpInvalidJsonError, "Invalid JSON body")
		return
	}
	stage, ok := parseStageQuery(req.Stage)
	if !ok || stage == "" {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpValidationError, "unknown stage")
		return
	}

	ctx := c.Request.Context()
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeErrorType(c, http.StatusNotFound, httperr.HttpNotFoundError, "Lead not found")
			return
		}
		slog.Error("Failed to load lead", "lead_id", id, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to load lead")
		return
	}

	if !stageReached(lead, stage) {
		writeErrorType(c, http.StatusConflict, httperr.HttpValidationError, "lead has not reached this stage")
		return
	}

	eventID := eventIDForResend(lead, stage)
	result := s.deliver(ctx, s.eventForStage(lead, stage, eventID))
	s.recordConversion(ctx, id, stage, eventID, result)

	c.JSON(http.StatusOK, gin.H{
		"id":       id,
		"stage":    stage,
		"event_id": eventID,
		"delivery": gin.H{
			"ok":            result.OK,
			"success_count": result.Succeeded,
			"failure_count": result.Failed,
		},
	})
}

// stageReached reports whether the lead's record carries the facts the
// stage event is built from.
func stageReached(lead *v1.Lead, stage v1.Stage) bool {
	switch stage {
	case v1.StageContact:
		return lead.ContactedAt != nil
	case v1.StageSchedule:
		return lead.ScheduledFor != ""
	case v1.StagePurchase:
		return lead.PaidValue.IsPositive()
	default:
		return true
	}
}

type bulkResendRequest struct {
	Stage      string `json:"stage"`
	SinceDays  int    `json:"since_days,omitempty"`
	OnlyFailed bool   `json:"only_failed,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// BulkResendHandler re-delivers one stage conversion for a batch of leads.
// Each lead is processed independently; one failure never aborts the batch.
func (s *Service) BulkResendHandler(c *gin.Context) {
	var req bulkResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpInvalidJsonError, "Invalid JSON body")
		return
	}
	stage, ok := parseStageQuery(req.Stage)
	if !ok || stage == "" {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpValidationError, "unknown stage")
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultBulkLimit
	}
	if limit > maxBulkLimit {
		limit = maxBulkLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	var since time.Time
	if req.SinceDays > 0 {
		since = time.Now().UTC().AddDate(0, 0, -req.SinceDays)
	}

	ctx := c.Request.Context()
	ids, err := s.leads.ListIDsForResend(ctx, storage.ResendFilter{
		Stage:      stage,
		Since:      since,
		OnlyFailed: req.OnlyFailed,
		Limit:      limit,
		Offset:     req.Offset,
	})
	if err != nil {
		slog.Error("Failed to list leads for resend", "stage", stage, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to list leads")
		return
	}

	var succeeded, failed int
	for _, id := range ids {
		lead, err := s.leads.GetByID(ctx, id)
		if err != nil {
			slog.Warn("Skipping lead in bulk resend", "lead_id", id, "error", err)
			failed++
			continue
		}

		eventID := eventIDForResend(lead, stage)
		result := s.deliver(ctx, s.eventForStage(lead, stage, eventID))
		s.recordConversion(ctx, id, stage, eventID, result)

		if result.OK {
			succeeded++
		} else {
			failed++
		}
	}

	resp := gin.H{
		"stage":     stage,
		"processed": len(ids),
		"succeeded": succeeded,
		"failed":    failed,
	}
	if len(ids) == limit {
		resp["next_offset"] = req.Offset + limit
	}
	c.JSON(http.StatusOK, resp)
}

// exportLine is one JSONL row of the offline export: the provider-shaped
// event plus the lead id for reconciliation.
type exportLine struct {
	LeadID int64 `json:"lead_id"`
	capi.ProviderEvent
}

// ExportHandler streams the recent funnel events as JSONL, one line per
// stage each lead has reached. Identity fields go out hashed, the same as
// over the wire.
func (s *Service) ExportHandler(c *gin.Context) {
	days := s.exportWindowDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > s.exportWindowDays {
			writeErrorType(c, http.StatusBadRequest, httperr.HttpValidationError, "days out of range")
			return
		}
		days = n
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	leads, err := s.leads.ListSince(c.Request.Context(), since, maxListLimit*10)
	if err != nil {
		slog.Error("Failed to list leads for export", "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to export leads")
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Content-Disposition", "attachment; filename=conversions.jsonl")

	enc := json.NewEncoder(c.Writer)
	for _, lead := range leads {
		for _, stage := range []v1.Stage{v1.StageLead, v1.StageContact, v1.StageSchedule, v1.StagePurchase} {
			if !stageReached(lead, stage) {
				continue
			}
			evt := s.eventForStage(lead, stage, lead.Conversion(stage).EventID)
			if err := enc.Encode(exportLine{LeadID: lead.ID, ProviderEvent: capi.BuildEvent(evt)}); err != nil {
				slog.Error("Failed to encode export line", "lead_id", lead.ID, "error", err)
				return
			}
		}
	}
}

// TrackingHealthHandler reports the state of the tracking setup: destination
// counts, the active Google Ads tag and recent lead volume.
func (s *Service) TrackingHealthHandler(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := s.destinations.Count(ctx)
	if err != nil {
		slog.Error("Failed to count destinations", "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to inspect destinations")
		return
	}
	active, err := s.destinations.CountActive(ctx)
	if err != nil {
		slog.Error("Failed to count active destinations", "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to inspect destinations")
		return
	}

	health := gin.H{
		"destinations": gin.H{"total": total, "active": active},
		"delivering":   active > 0,
	}

	if s.googleAds != nil {
		if tag, err := s.googleAds.GetActive(ctx); err == nil {
			health["google_ads"] = gin.H{"active_tag": tag.TagName, "conversion_id": tag.ConversionID}
		} else if errors.Is(err, storage.ErrNotFound) {
			health["google_ads"] = gin.H{"active_tag": nil}
		}
	}

	since := time.Now().UTC().Add(-healthWindowHours * time.Hour)
	if recent, err := s.leads.ListSince(ctx, since, maxListLimit); err == nil {
		health["leads_last_7d"] = len(recent)
	}

	c.JSON(http.StatusOK, health)
}
