// Package tracking serves the public tracking bootstrap: which pixel ids
// and Google Ads labels the website snippet should fire. Access tokens
// never cross this boundary.
package tracking

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	httperr "github.com/leadcast-lab/leadcast/internal/core/errors"
	"github.com/leadcast-lab/leadcast/internal/core/storage"
)

type Service struct {
	destinations storage.DestinationStore
	googleAds    storage.GoogleAdsStore
}

func NewService(dests storage.DestinationStore, googleAds storage.GoogleAdsStore) *Service {
	if dests == nil {
		panic("tracking: destination store must not be nil")
	}
	return &Service{destinations: dests, googleAds: googleAds}
}

// RegisterRoutes registers the public tracking routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/tracking/config", s.ConfigHandler)
}

type googleAdsConfig struct {
	ConversionID  string `json:"conversion_id"`
	LeadLabel     string `json:"lead_label,omitempty"`
	ContactLabel  string `json:"contact_label,omitempty"`
	ScheduleLabel string `json:"schedule_label,omitempty"`
}

// ConfigHandler returns the active pixel ids and the active Google Ads tag
// labels for the browser snippet.
func (s *Service) ConfigHandler(c *gin.Context) {
	ctx := c.Request.Context()

	dests, err := s.destinations.ListActive(ctx)
	if err != nil {
		slog.Error("Failed to resolve active destinations", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to load tracking config",
		})
		return
	}

	pixelIDs := make([]string, 0, len(dests))
	for _, d := range dests {
		pixelIDs = append(pixelIDs, d.PixelID)
	}

	resp := gin.H{"pixel_ids": pixelIDs}

	if s.googleAds != nil {
		tag, err := s.googleAds.GetActive(ctx)
		switch {
		case err == nil:
			resp["google_ads"] = googleAdsConfig{
				ConversionID:  tag.ConversionID,
				LeadLabel:     tag.LeadLabel,
				ContactLabel:  tag.ContactLabel,
				ScheduleLabel: tag.ScheduleLabel,
			}
		case !errors.Is(err, storage.ErrNotFound):
			slog.Error("Failed to resolve active google ads tag", "error", err)
		}
	}

	c.JSON(http.StatusOK, resp)
}
