package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicdesk/registration-api/internal/handler"
	"github.com/clinicdesk/registration-api/internal/middleware"
	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/service/event"
	"github.com/clinicdesk/registration-api/internal/service/queue"
	"github.com/clinicdesk/registration-api/internal/service/registry"
)

type Handler struct {
	queue    *queue.Service
	registry *registry.Service
	events   *event.Service
}

func NewHandler(queue *queue.Service, registry *registry.Service, events *event.Service) *Handler {
	return &Handler{queue: queue, registry: registry, events: events}
}

// ListMine returns the authenticated patient's own appointments.
func (h *Handler) ListMine(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	patient, err := h.registry.ResolvePatient(c.Request.Context(), actor.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	appointments, err := h.registry.ListByPatient(c.Request.Context(), patient.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func (h *Handler) GetProgress(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	progress, err := h.registry.Progress(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(progress))
}

func (h *Handler) GetHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	events, err := h.events.History(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(events))
}

// CheckIn marks arrival at the front desk. Checking in twice is reported as
// an accepted no-op so desk software can treat it as idempotent.
func (h *Handler) CheckIn(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	apt, err := h.queue.CheckIn(c.Request.Context(), middleware.ActorFrom(c), id)
	if err == model.ErrAlreadyCheckedIn {
		c.JSON(http.StatusOK, handler.NewInfoResponse("appointment already checked in", apt))
		return
	}
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) Complete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	apt, err := h.queue.Complete(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

// Cancel withdraws a booking. Cancelling an already cancelled appointment
// is an accepted no-op.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	apt, err := h.queue.Cancel(c.Request.Context(), middleware.ActorFrom(c), id)
	if err == model.ErrAlreadyCancelled {
		c.JSON(http.StatusOK, handler.NewInfoResponse("appointment already cancelled", apt))
		return
	}
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}
