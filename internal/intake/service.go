// Package intake exposes the public lead-capture endpoints: the website
// form submission and the contacted-by-phone conversion.
package intake

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	v1 "github.com/leadcast-lab/leadcast/internal/api/v1"
	"github.com/leadcast-lab/leadcast/internal/core/capi"
	"github.com/leadcast-lab/leadcast/internal/core/storage"
)

type Service struct {
	leads            storage.LeadStore
	destinations     storage.DestinationStore
	dispatcher       *capi.Dispatcher
	maxBodySizeBytes int
	testEventCode    string
}

func NewService(leads storage.LeadStore, dests storage.DestinationStore, dispatcher *capi.Dispatcher, maxBodySizeMB int, testEventCode string) *Service {
	if leads == nil {
		panic("intake: lead store must not be nil")
	}
	if dests == nil {
		panic("intake: destination store must not be nil")
	}
	if dispatcher == nil {
		panic("intake: dispatcher must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		leads:            leads,
		destinations:     dests,
		dispatcher:       dispatcher,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
		testEventCode:    testEventCode,
	}
}

// RegisterRoutes registers the public intake routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/leads", s.SubmitLeadHandler)
	r.POST("/v1/contact", s.ContactHandler)
}

// deliver resolves the active destinations and fans the event out. Lookup
// failures fold into the result the same way delivery failures do; the
// caller decides what to do with a failed result, and for intake that is
// always "persist and move on".
func (s *Service) deliver(ctx context.Context, evt capi.LogicalEvent) capi.DeliveryResult {
	dests, err := s.destinations.ListActive(ctx)
	if err != nil {
		slog.Error("Failed to resolve active destinations", "event_name", evt.EventName, "error", err)
		return capi.DeliveryResult{OK: false, Error: "destination_lookup_failed"}
	}
	return s.dispatcher.Deliver(ctx, evt, dests)
}

// recordConversion persists the delivery bookkeeping for one funnel stage.
// Best effort: the event already went out, so a bookkeeping failure is
// logged rather than surfaced.
func (s *Service) recordConversion(ctx context.Context, leadID int64, stage v1.Stage, eventID string, result capi.DeliveryResult) {
	response, err := json.Marshal(result)
	if err != nil {
		response = []byte(`{"ok":false,"error":"encode_failed"}`)
	}

	state := v1.ConversionState{EventID: eventID, Sent: result.OK, Response: string(response)}
	if err := s.leads.SetConversionState(ctx, leadID, stage, state); err != nil {
		slog.Error("Failed to record conversion state",
			"lead_id", leadID, "stage", stage, "event_id", eventID, "error", err)
	}
}

func newEventID(prefix string) string {
	return capi.NewEventID(prefix)
}

// clientIP extracts the visitor's IP, preferring proxy-injected headers in
// trust order. X-Forwarded-For keeps only the first hop.
func clientIP(c *gin.Context) string {
	if ip := strings.TrimSpace(c.GetHeader("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}
