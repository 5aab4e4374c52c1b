package eircode

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	httperr "github.com/leadcast-lab/leadcast/internal/core/errors"
)

// Service serves the public eircode validation endpoint. A nil lookup
// client degrades to validation-only responses.
type Service struct {
	lookup *LookupClient
}

func NewService(lookup *LookupClient) *Service {
	return &Service{lookup: lookup}
}

// RegisterRoutes registers the public eircode routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/eircode/:code", s.ValidateHandler)
}

// ValidateHandler validates an eircode and, when a lookup provider is
// configured, resolves its address. Lookup failures degrade to
// validation-only, never to an error.
func (s *Service) ValidateHandler(c *gin.Context) {
	code := c.Param("code")

	formatted, err := Format(code)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   "Not a valid eircode",
		})
		return
	}

	resp := gin.H{"eircode": formatted, "valid": true}

	if s.lookup != nil {
		addr, err := s.lookup.Lookup(c.Request.Context(), code)
		if err != nil {
			slog.Warn("Eircode lookup degraded to validation-only", "error", err)
		} else if addr != nil {
			resp["address"] = addr
		}
	}

	c.JSON(http.StatusOK, resp)
}
