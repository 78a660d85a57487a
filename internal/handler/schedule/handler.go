package schedule

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicdesk/registration-api/internal/handler"
	"github.com/clinicdesk/registration-api/internal/middleware"
	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/service/booking"
	"github.com/clinicdesk/registration-api/internal/service/event"
	"github.com/clinicdesk/registration-api/internal/service/queue"
	"github.com/clinicdesk/registration-api/internal/service/registry"
	"github.com/clinicdesk/registration-api/internal/service/session"
)

type Handler struct {
	registry *registry.Service
	booking  *booking.Service
	queue    *queue.Service
	session  *session.Service
	events   *event.Service
}

func NewHandler(registry *registry.Service, booking *booking.Service, queue *queue.Service, session *session.Service, events *event.Service) *Handler {
	return &Handler{
		registry: registry,
		booking:  booking,
		queue:    queue,
		session:  session,
		events:   events,
	}
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	var req model.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	schedule, err := h.registry.Create(c.Request.Context(), middleware.ActorFrom(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(schedule))
}

func (h *Handler) ListSchedules(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	schedules, err := h.registry.Browse(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(schedules))
}

func (h *Handler) GetSchedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid schedule ID"))
		return
	}

	schedule, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(schedule))
}

// GetStatus serves the waiting-room status board for one schedule.
func (h *Handler) GetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid schedule ID"))
		return
	}

	board, err := h.registry.Board(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(board))
}

// ListBoards serves the whole-clinic overview, one board per schedule.
func (h *Handler) ListBoards(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	boards, err := h.registry.Boards(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(boards))
}

func (h *Handler) ListEvents(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid schedule ID"))
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	events, err := h.events.ScheduleFeed(c.Request.Context(), id, limit)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(events))
}

// Book reserves the next queue number. Patients book for themselves; staff
// book on behalf of a patient by supplying patient_id.
func (h *Handler) Book(c *gin.Context) {
	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid schedule ID"))
		return
	}

	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actor := middleware.ActorFrom(c)
	in := booking.BookInput{
		ScheduleID: scheduleID,
		Notes:      req.Notes,
		Source:     "onsite",
	}

	if actor.IsPatient() {
		patient, err := h.registry.ResolvePatient(c.Request.Context(), actor.ID)
		if err != nil {
			handler.RespondError(c, err)
			return
		}
		in.PatientID = patient.ID
		in.Source = "online"
	} else {
		if req.PatientID == "" {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("patient_id is required"))
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
			return
		}
		in.PatientID = patientID
	}

	if req.FamilyMemberID != "" {
		memberID, err := uuid.Parse(req.FamilyMemberID)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid family member ID"))
			return
		}
		in.FamilyMemberID = &memberID
	}

	apt, err := h.booking.Book(c.Request.Context(), actor, in)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(apt))
}

// CallNext moves the lowest checked-in number into the consultation room. An
// empty queue is reported as an informational result, not an error.
func (h *Handler) CallNext(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid schedule ID"))
		return
	}

	apt, err := h.queue.CallNext(c.Request.Context(), middleware.ActorFrom(c), id)
	if err == model.ErrNothingToCall {
		c.JSON(http.StatusOK, handler.NewInfoResponse("no patient is waiting", nil))
		return
	}
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

// Action dispatches the session lifecycle verbs: pause, resume, end.
func (h *Handler) Action(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid schedule ID"))
		return
	}

	var req model.ScheduleActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actor := middleware.ActorFrom(c)
	ctx := c.Request.Context()

	switch req.Action {
	case "pause":
		schedule, err := h.session.Pause(ctx, actor, id)
		if err != nil {
			handler.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, handler.NewSuccessResponse(schedule))
	case "resume":
		schedule, err := h.session.Resume(ctx, actor, id)
		if err != nil {
			handler.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, handler.NewSuccessResponse(schedule))
	case "end":
		result, err := h.session.End(ctx, actor, id)
		if err != nil {
			handler.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
	}
}

func parseFilter(c *gin.Context) (*model.ScheduleFilter, error) {
	filter := &model.ScheduleFilter{}
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, err
		}
		filter.Date = &date
	}
	if raw := c.Query("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		filter.DoctorID = &id
	}
	if raw := c.Query("department_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		filter.DepartmentID = &id
	}
	filter.BookableOnly = c.Query("bookable") == "true"
	return filter, nil
}
