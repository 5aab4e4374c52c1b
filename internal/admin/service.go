// Package admin exposes the dashboard API: lead management, funnel stage
// marking, conversion resends, the offline export and destination
// credential management. Every route sits behind the API key middleware.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	v1 "github.com/leadcast-lab/leadcast/internal/api/v1"
	"github.com/leadcast-lab/leadcast/internal/core/capi"
	httperr "github.com/leadcast-lab/leadcast/internal/core/errors"
	"github.com/leadcast-lab/leadcast/internal/core/storage"
)

// ActivationPolicy governs destination credential activation. The pipeline
// never consults it; only the admin mutations do.
type ActivationPolicy struct {
	// AutoRecovery reactivates the newest destination when the last active
	// one is removed, so delivery never silently stops.
	AutoRecovery bool

	// EnforceSingleActive deactivates every other destination when one is
	// activated.
	EnforceSingleActive bool
}

type Service struct {
	leads        storage.LeadStore
	destinations storage.DestinationStore
	googleAds    storage.GoogleAdsStore
	dispatcher   *capi.Dispatcher

	apiKey           string
	exportWindowDays int
	policy           ActivationPolicy
	testEventCode    string
}

func NewService(
	leads storage.LeadStore,
	dests storage.DestinationStore,
	googleAds storage.GoogleAdsStore,
	dispatcher *capi.Dispatcher,
	apiKey string,
	exportWindowDays int,
	policy ActivationPolicy,
	testEventCode string,
) *Service {
	if leads == nil {
		panic("admin: lead store must not be nil")
	}
	if dests == nil {
		panic("admin: destination store must not be nil")
	}
	if dispatcher == nil {
		panic("admin: dispatcher must not be nil")
	}
	if exportWindowDays <= 0 || exportWindowDays > 7 {
		exportWindowDays = 7
	}
	return &Service{
		leads:            leads,
		destinations:     dests,
		googleAds:        googleAds,
		dispatcher:       dispatcher,
		apiKey:           apiKey,
		exportWindowDays: exportWindowDays,
		policy:           policy,
		testEventCode:    testEventCode,
	}
}

// RegisterRoutes registers the admin routes behind the auth middleware.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/v1/admin", s.authMiddleware)

	g.GET("/leads", s.ListLeadsHandler)
	g.GET("/leads/:id", s.GetLeadHandler)
	g.POST("/leads/:id/schedule", s.ScheduleHandler)
	g.POST("/leads/:id/purchase", s.PurchaseHandler)
	g.POST("/leads/:id/resend", s.ResendHandler)
	g.POST("/resend", s.BulkResendHandler)
	g.GET("/export", s.ExportHandler)

	g.GET("/destinations", s.ListDestinationsHandler)
	g.POST("/destinations", s.CreateDestinationHandler)
	g.POST("/destinations/:id/activate", s.ActivateDestinationHandler)
	g.POST("/destinations/:id/deactivate", s.DeactivateDestinationHandler)
	g.PUT("/destinations/:id/token", s.UpdateDestinationTokenHandler)
	g.DELETE("/destinations/:id", s.DeleteDestinationHandler)

	g.GET("/google-ads", s.ListGoogleAdsHandler)
	g.POST("/google-ads", s.CreateGoogleAdsHandler)
	g.POST("/google-ads/:id/activate", s.ActivateGoogleAdsHandler)
	g.DELETE("/google-ads/:id", s.DeleteGoogleAdsHandler)

	g.GET("/tracking/health", s.TrackingHealthHandler)
}

// authMiddleware accepts the key as X-API-Key or a bearer token. An empty
// configured key locks the admin surface entirely.
func (s *Service) authMiddleware(c *gin.Context) {
	supplied := c.GetHeader("X-API-Key")
	if supplied == "" {
		supplied = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if s.apiKey == "" || supplied != s.apiKey {
		c.AbortWithStatusJSON(http.StatusUnauthorized, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnauthorizedError,
			Message:   "Invalid or missing API key",
		})
		return
	}
	c.Next()
}

func writeErrorType(c *gin.Context, status int, errType, msg string) {
	c.JSON(status, httperr.ErrorResponse{ErrorType: errType, Message: msg})
}

// deliver resolves the active destinations and fans one event out.
func (s *Service) deliver(ctx context.Context, evt capi.LogicalEvent) capi.DeliveryResult {
	dests, err := s.destinations.ListActive(ctx)
	if err != nil {
		slog.Error("Failed to resolve active destinations", "event_name", evt.EventName, "error", err)
		return capi.DeliveryResult{OK: false, Error: "destination_lookup_failed"}
	}
	return s.dispatcher.Deliver(ctx, evt, dests)
}

// recordConversion persists delivery bookkeeping for a stage, best effort.
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
