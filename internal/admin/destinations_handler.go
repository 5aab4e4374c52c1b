package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	httperr "github.com/leadcast-lab/leadcast/internal/core/errors"
	"github.com/leadcast-lab/leadcast/internal/core/storage"
)

// ListDestinationsHandler returns every stored destination. Access tokens
// never serialize; PixelRow strips them at the type level.
func (s *Service) ListDestinationsHandler(c *gin.Context) {
	rows, err := s.destinations.List(c.Request.Context())
	if err != nil {
		slog.Error("Failed to list destinations", "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to list destinations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"destinations": rows})
}

type createDestinationRequest struct {
	PixelID     string `json:"pixel_id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
	Active      bool   `json:"active"`
}

// CreateDestinationHandler stores a new destination credential set.
func (s *Service) CreateDestinationHandler(c *gin.Context) {
	var req createDestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpInvalidJsonError, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.PixelID) == "" || strings.TrimSpace(req.AccessToken) == "" {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpValidationError, "pixel_id and access_token are required")
		return
	}

	ctx := c.Request.Context()

	if req.Active && s.policy.EnforceSingleActive {
		if err := s.destinations.DeactivateAll(ctx); err != nil {
			slog.Error("Failed to deactivate destinations", "error", err)
			writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to store destination")
			return
		}
	}

	id, err := s.destinations.Create(ctx, storage.PixelRow{
		PixelID:     strings.TrimSpace(req.PixelID),
		Name:        req.Name,
		AccessToken: strings.TrimSpace(req.AccessToken),
		Active:      req.Active,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeErrorType(c, http.StatusConflict, httperr.HttpDuplicateError, "Pixel already configured")
			return
		}
		slog.Error("Failed to store destination", "pixel_id", req.PixelID, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to store destination")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// ActivateDestinationHandler activates one destination, deactivating the
// rest when single-active is enforced.
func (s *Service) ActivateDestinationHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if s.policy.EnforceSingleActive {
		if err := s.destinations.DeactivateAll(ctx); err != nil {
			slog.Error("Failed to deactivate destinations", "error", err)
			writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to activate destination")
			return
		}
	}

	if err := s.destinations.SetActive(ctx, id, true); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeErrorType(c, http.StatusNotFound, httperr.HttpNotFoundError, "Destination not found")
			return
		}
		slog.Error("Failed to activate destination", "id", id, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to activate destination")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "active": true})
}

// DeactivateDestinationHandler deactivates one destination. Under
// auto-recovery the last active destination cannot be switched off, so
// delivery never silently stops.
func (s *Service) DeactivateDestinationHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if s.policy.AutoRecovery {
		active, err := s.destinations.CountActive(ctx)
		if err != nil {
			slog.Error("Failed to count active destinations", "error", err)
			writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to deactivate destination")
			return
		}
		if active <= 1 {
			row, err := s.destinations.GetByID(ctx, id)
			if err == nil && row.Active {
				writeErrorType(c, http.StatusConflict, httperr.HttpValidationError,
					"cannot deactivate the last active destination")
				return
			}
		}
	}

	if err := s.destinations.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeErrorType(c, http.StatusNotFound, httperr.HttpNotFoundError, "Destination not found")
			return
		}
		slog.Error("Failed to deactivate destination", "id", id, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to deactivate destination")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "active": false})
}

type updateTokenRequest struct {
	AccessToken string `json:"access_token"`
}

// UpdateDestinationTokenHandler rotates one destination's access token.
func (s *Service) UpdateDestinationTokenHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req updateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpInvalidJsonError, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpValidationError, "access_token is required")
		return
	}

	if err := s.destinations.UpdateToken(c.Request.Context(), id, strings.TrimSpace(req.AccessToken)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeErrorType(c, http.StatusNotFound, httperr.HttpNotFoundError, "Destination not found")
			return
		}
		slog.Error("Failed to update destination token", "id", id, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to update token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

// DeleteDestinationHandler removes a destination. Under auto-recovery,
// removing the active one reactivates the newest remaining credential.
func (s *Service) DeleteDestinationHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	row, err := s.destinations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeErrorType(c, http.StatusNotFound, httperr.HttpNotFoundError, "Destination not found")
			return
		}
		slog.Error("Failed to load destination", "id", id, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to delete destination")
		return
	}
	wasActive := row.Active

	if err := s.destinations.Delete(ctx, id); err != nil {
		slog.Error("Failed to delete destination", "id", id, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to delete destination")
		return
	}

	resp := gin.H{"id": id, "deleted": true}

	if wasActive && s.policy.AutoRecovery {
		active, err := s.destinations.CountActive(ctx)
		if err == nil && active == 0 {
			if recovered, err := s.destinations.ActivateLatest(ctx); err == nil {
				slog.Info("Auto-recovered destination activation",
					"pixel_id", recovered.PixelID, "id", recovered.ID)
				resp["recovered_pixel_id"] = recovered.PixelID
			} else if !errors.Is(err, storage.ErrNotFound) {
				slog.Error("Failed to auto-recover destination", "error", err)
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

// ListGoogleAdsHandler returns every Google Ads conversion tag.
func (s *Service) ListGoogleAdsHandler(c *gin.Context) {
	tags, err := s.googleAds.List(c.Request.Context())
	if err != nil {
		slog.Error("Failed to list google ads tags", "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to list tags")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// CreateGoogleAdsHandler stores a new Google Ads conversion tag.
func (s *Service) CreateGoogleAdsHandler(c *gin.Context) {
	var tag storage.GoogleAdsTag
	if err := c.ShouldBindJSON(&tag); err != nil {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpInvalidJsonError, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(tag.TagName) == "" || strings.TrimSpace(tag.ConversionID) == "" {
		writeErrorType(c, http.StatusBadRequest, httperr.HttpValidationError, "tag_name and conversion_id are required")
		return
	}

	id, err := s.googleAds.Create(c.Request.Context(), tag)
	if err != nil {
		slog.Error("Failed to store google ads tag", "tag_name", tag.TagName, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to store tag")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// ActivateGoogleAdsHandler makes one tag the active one. The store enforces
// single-active transactionally.
func (s *Service) ActivateGoogleAdsHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := s.googleAds.Activate(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeErrorType(c, http.StatusNotFound, httperr.HttpNotFoundError, "Tag not found")
			return
		}
		slog.Error("Failed to activate google ads tag", "id", id, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to activate tag")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "active": true})
}

// DeleteGoogleAdsHandler removes a tag.
func (s *Service) DeleteGoogleAdsHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := s.googleAds.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeErrorType(c, http.StatusNotFound, httperr.HttpNotFoundError, "Tag not found")
			return
		}
		slog.Error("Failed to delete google ads tag", "id", id, "error", err)
		writeErrorType(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to delete tag")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}
