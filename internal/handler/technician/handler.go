package technician

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fieldserve/booking-api/internal/service/availability"
	apperrors "github.com/fieldserve/booking-api/pkg/errors"
	"github.com/fieldserve/booking-api/pkg/httputil"
)

// Handler exposes technician availability to the booking wizard.
type Handler struct {
	availability *availability.Service
}

func NewHandler(availability *availability.Service) *Handler {
	return &Handler{availability: availability}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	technicians := rg.Group("/technicians")
	{
		technicians.GET("/:id/slots", h.ListSlots)
		technicians.GET("/:id/availability", h.CheckAvailability)
	}
}

func technicianID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid technician ID", err))
		return uuid.Nil, false
	}
	return id, true
}

// ListSlots returns the technician's declared slots over the listing
// window starting at the given day (default today).
func (h *Handler) ListSlots(c *gin.Context) {
	id, ok := technicianID(c)
	if !ok {
		return
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid from date", err))
			return
		}
		day = parsed
	}

	slots, err := h.availability.ListSlots(c.Request.Context(), id, day)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, slots)
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

// CheckAvailability answers whether the technician can take a job at the
// given start for the given duration.
func (h *Handler) CheckAvailability(c *gin.Context) {
	id, ok := technicianID(c)
	if !ok {
		return
	}

	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid or missing start time", err))
		return
	}

	durationMinutes := 0
	if raw := c.Query("duration_minutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid duration", err))
			return
		}
		durationMinutes = parsed
	}

	available, err := h.availability.IsAvailable(c.Request.Context(), id, start, durationMinutes)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, availabilityResponse{Available: available})
}
