package intake

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	v1 "github.com/leadcast-lab/leadcast/internal/api/v1"
	"github.com/leadcast-lab/leadcast/internal/core/capi"
	httperr "github.com/leadcast-lab/leadcast/internal/core/errors"
	"github.com/leadcast-lab/leadcast/internal/core/identity"
	"github.com/leadcast-lab/leadcast/internal/core/storage"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgPersistFailed  = "Failed to persist lead"
	msgInvalidPhone   = "Phone number is not a recognizable Irish number"
	msgLeadNotFound   = "Lead not found"
)

// intakeError carries the structured HTTP error shape from a helper back to
// the orchestrator. Helpers return this instead of writing to gin.Context
// directly, keeping them decoupled from HTTP.
type intakeError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *intakeError) Error() string {
	return e.message
}

func writeError(c *gin.Context, err *intakeError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}

// SubmitLeadHandler handles the website lead form. The lead is stored
// first; the conversion delivery happens after and its failure never fails
// the submission.
func (s *Service) SubmitLeadHandler(c *gin.Context) {
	sub, payloadSize, err := s.parseSubmission(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if verr := sub.Validate(); verr != nil {
		slog.Warn("Lead submission rejected", "error", verr, "payload_size", payloadSize)
		writeError(c, &intakeError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    verr.Error(),
		})
		return
	}

	digits, needsReview, perr := classifyPhone(sub.Data.Phone)
	if perr != nil {
		writeError(c, perr)
		return
	}

	eventID := sub.EventID
	if eventID == "" {
		eventID = newEventID("lead")
	}

	lead := buildLead(sub, digits, needsReview, eventID, clientIP(c), c.Request.UserAgent())

	slog.Info("Received lead submission",
		"email", lead.Email,
		"event_id", eventID,
		"phone_needs_review", needsReview,
		"payload_size", payloadSize)

	if err := s.leads.Insert(c.Request.Context(), lead); err != nil {
		slog.Error("Failed to persist lead", "error", err, "event_id", eventID)
		writeError(c, &intakeError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		})
		return
	}

	result := s.deliver(c.Request.Context(), s.leadEvent(lead, sub, eventID))
	s.recordConversion(c.Request.Context(), lead.ID, v1.StageLead, eventID, result)

	c.JSON(http.StatusCreated, gin.H{
		"id":       lead.ID,
		"event_id": eventID,
		"delivery": gin.H{
			"ok":            result.OK,
			"success_count": result.Succeeded,
			"failure_count": result.Failed,
		},
	})
}

// ContactHandler marks an existing lead as contacted and sends the Contact
// conversion with the freshest identity on record.
func (s *Service) ContactHandler(c *gin.Context) {
	var req v1.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Invalid contact request body", "error", err)
		writeError(c, &intakeError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		})
		return
	}
	if req.LeadID <= 0 {
		writeError(c, &intakeError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    "missing_lead_id",
		})
		return
	}

	ctx := c.Request.Context()
	lead, err := s.leads.GetByID(ctx, req.LeadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(c, &intakeError{
				statusCode: http.StatusNotFound,
				errorType:  httperr.HttpNotFoundError,
				message:    msgLeadNotFound,
			})
			return
		}
		slog.Error("Failed to load lead", "lead_id", req.LeadID, "error", err)
		writeError(c, &intakeError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		})
		return
	}

	eventID := req.EventID
	if eventID == "" {
		eventID = newEventID("contact")
	}

	upd := contactUpdate(req, clientIP(c), c.Request.UserAgent(), eventID)
	if err := s.leads.MarkContacted(ctx, lead.ID, time.Now().UTC(), upd); err != nil {
		slog.Error("Failed to mark lead contacted", "lead_id", lead.ID, "error", err)
		writeError(c, &intakeError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		})
		return
	}

	result := s.deliver(ctx, s.contactEvent(lead, req, upd, eventID))
	s.recordConversion(ctx, lead.ID, v1.StageContact, eventID, result)

	c.JSON(http.StatusOK, gin.H{
		"id":       lead.ID,
		"event_id": eventID,
		"delivery": gin.H{
			"ok":            result.OK,
			"success_count": result.Succeeded,
			"failure_count": result.Failed,
		},
	})
}

// parseSubmission reads the raw request body and binds it into a
// LeadSubmission. Returns the payload size for structured logging upstream.
func (s *Service) parseSubmission(c *gin.Context) (*v1.LeadSubmission, int, *intakeError) {
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, 0, &intakeError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &intakeError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var sub v1.LeadSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &intakeError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	return &sub, len(bodyBytes), nil
}

// classifyPhone applies the strict Irish phone policy: unparseable numbers
// with a plausible digit count are accepted but flagged for manual review,
// everything shorter is rejected outright.
func classifyPhone(raw string) (digits string, needsReview bool, err *intakeError) {
	digits, ok := identity.ParsePhone(raw)
	if ok {
		return digits, false, nil
	}
	if identity.PlausiblePhone(raw) {
		return identity.Digits(raw), true, nil
	}
	return "", false, &intakeError{
		statusCode: http.StatusBadRequest,
		errorType:  httperr.HttpInvalidPhoneError,
		message:    msgInvalidPhone,
	}
}

func buildLead(sub *v1.LeadSubmission, digits string, needsReview bool, eventID, ip, userAgent string) *v1.Lead {
	data, meta := sub.Data, sub.Meta

	ua := meta.UserAgent
	if ua == "" {
		ua = userAgent
	}

	return &v1.Lead{
		Name:             data.FullName(),
		Email:            data.Email,
		Phone:            data.Phone,
		PhoneDigits:      digits,
		PhoneNeedsReview: needsReview,

		ServiceType: data.ServiceType,
		Bedrooms:    data.Bedrooms,
		Bathrooms:   data.Bathrooms,

		Eircode:      data.Eircode,
		AddressLine1: data.AddressLine1,
		AddressLine2: data.AddressLine2,
		City:         data.City,
		County:       data.County,
		Country:      data.Country,

		PageURL:   meta.PageURL,
		Referrer:  meta.Referrer,
		UserAgent: ua,
		IPAddress: ip,

		FBCLID: meta.FBCLID,
		FBP:    meta.FBP,
		FBC:    meta.FBC,
		GCLID:  meta.GCLID,
		GBRAID: meta.GBRAID,
		WBRAID: meta.WBRAID,

		UTMSource:   meta.UTMSource,
		UTMMedium:   meta.UTMMedium,
		UTMCampaign: meta.UTMCampaign,
		UTMContent:  meta.UTMContent,
		UTMTerm:     meta.UTMTerm,

		LeadEvent: v1.ConversionState{EventID: eventID},
	}
}

func (s *Service) leadEvent(lead *v1.Lead, sub *v1.LeadSubmission, eventID string) capi.LogicalEvent {
	testCode := sub.TestEventCode
	if testCode == "" {
		testCode = sub.Meta.TestEventCode
	}
	if testCode == "" {
		testCode = s.testEventCode
	}

	return capi.LogicalEvent{
		EventName:      capi.EventLead,
		EventID:        eventID,
		EventSourceURL: lead.PageURL,
		ActionSource:   capi.SourceWebsite,
		TestEventCode:  testCode,
		User: identity.RawIdentity{
			Name:            lead.Name,
			FirstName:       sub.Data.FirstName,
			LastName:        sub.Data.LastName,
			Email:           lead.Email,
			Phone:           lead.PhoneDigits,
			Zip:             lead.Eircode,
			City:            lead.City,
			State:           lead.County,
			Country:         lead.Country,
			FBP:             lead.FBP,
			FBC:             lead.FBC,
			ClientIP:        lead.IPAddress,
			ClientUserAgent: lead.UserAgent,
		},
		Custom: map[string]any{
			"service_type": lead.ServiceType,
			"bedrooms":     lead.Bedrooms,
			"bathrooms":    lead.Bathrooms,
			"county":       lead.County,
		},
	}
}

// contactUpdate maps the request onto a storage update, parsing the phone
// leniently: a contact conversion must never bounce on a bad phone, the
// stored value simply stays.
func contactUpdate(req v1.ContactRequest, ip, userAgent, eventID string) storage.ContactUpdate {
	digits, _ := identity.ParsePhone(req.Phone)
	return storage.ContactUpdate{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		PhoneDigits: digits,
		ServiceType: req.ServiceType,
		FBP:         req.FBP,
		FBC:         req.FBC,
		FBCLID:      req.FBCLID,
		PageURL:     req.PageURL,
		UserAgent:   userAgent,
		IPAddress:   ip,
		EventID:     eventID,
	}
}

func (s *Service) contactEvent(lead *v1.Lead, req v1.ContactRequest, upd storage.ContactUpdate, eventID string) capi.LogicalEvent {
	name := firstNonEmpty(req.Name, lead.Name)
	email := firstNonEmpty(req.Email, lead.Email)
	phone := firstNonEmpty(upd.PhoneDigits, lead.PhoneDigits)

	return capi.LogicalEvent{
		EventName:      capi.EventContact,
		EventID:        eventID,
		EventSourceURL: firstNonEmpty(req.PageURL, lead.PageURL),
		ActionSource:   capi.SourceWebsite,
		TestEventCode:  s.testEventCode,
		User: identity.RawIdentity{
			Name:            name,
			Email:           email,
			Phone:           phone,
			Zip:             lead.Eircode,
			City:            lead.City,
			State:           lead.County,
			Country:         lead.Country,
			FBP:             firstNonEmpty(req.FBP, lead.FBP),
			FBC:             firstNonEmpty(req.FBC, lead.FBC),
			ClientIP:        upd.IPAddress,
			ClientUserAgent: upd.UserAgent,
		},
		Custom: map[string]any{
			"service_type": firstNonEmpty(req.ServiceType, lead.ServiceType),
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
