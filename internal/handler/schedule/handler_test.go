package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/registration-api/internal/middleware"
	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository/memory"
	"github.com/clinicdesk/registration-api/internal/service/booking"
	eventService "github.com/clinicdesk/registration-api/internal/service/event"
	"github.com/clinicdesk/registration-api/internal/service/queue"
	"github.com/clinicdesk/registration-api/internal/service/registry"
	"github.com/clinicdesk/registration-api/internal/service/session"
	"github.com/clinicdesk/registration-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

type env struct {
	store    *memory.Store
	engine   *gin.Engine
	schedule *model.Schedule
	actor    model.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	schedule := &model.Schedule{
		ID:           uuid.New(),
		DoctorID:     uuid.New(),
		DepartmentID: uuid.New(),
		Date:         time.Now(),
		Session:      model.SessionMorning,
		Quota:        5,
		Status:       model.ScheduleStatusOpen,
	}
	store.AddSchedule(schedule)

	log := testLogger()
	registrySvc := registry.NewService(store.Schedules(), store.Appointments(), store.Events(), store.Doctors(), store.Patients(), log)
	bookingSvc := booking.NewService(store, store.Schedules(), store.Patients(), nil, log)
	queueSvc := queue.NewService(store, store.Appointments(), store.Patients(), nil, log)
	sessionSvc := session.NewService(store, nil, log)
	eventSvc := eventService.NewService(store.Events(), store.Appointments())

	h := NewHandler(registrySvc, bookingSvc, queueSvc, sessionSvc, eventSvc)

	e := &env{store: store, schedule: schedule, actor: model.Actor{ID: uuid.New(), Role: model.RoleStaff, Name: "Desk"}}

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(middleware.ContextActor, e.actor)
		c.Next()
	})
	engine.POST("/schedules/:id/appointments", h.Book)
	engine.POST("/schedules/:id/call-next", h.CallNext)
	engine.POST("/schedules/:id/actions", h.Action)
	engine.GET("/schedules/:id/status", h.GetStatus)
	engine.GET("/schedules", h.ListSchedules)

	e.engine = engine
	return e
}

func (e *env) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *env) addPatient() *model.Patient {
	p := &model.Patient{ID: uuid.New(), UserID: uuid.New(), Name: "Patient"}
	e.store.AddPatient(p)
	return p
}

func TestBookEndpoint(t *testing.T) {
	e := newEnv(t)
	patient := e.addPatient()

	w := e.do(t, http.MethodPost, fmt.Sprintf("/schedules/%s/appointments", e.schedule.ID), gin.H{
		"patient_id": patient.ID.String(),
		"notes":      "walk-in",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Status string            `json:"status"`
		Data   model.Appointment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 1, resp.Data.QueueNumber)
}

func TestBookEndpointStaffRequiresPatientID(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, fmt.Sprintf("/schedules/%s/appointments", e.schedule.ID), gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookEndpointFullScheduleMapsTo422(t *testing.T) {
	e := newEnv(t)
	e.schedule.Quota = 1
	e.store.AddSchedule(e.schedule)

	first := e.addPatient()
	w := e.do(t, http.MethodPost, fmt.Sprintf("/schedules/%s/appointments", e.schedule.ID), gin.H{"patient_id": first.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code)

	second := e.addPatient()
	w = e.do(t, http.MethodPost, fmt.Sprintf("/schedules/%s/appointments", e.schedule.ID), gin.H{"patient_id": second.ID.String()})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestBookEndpointDuplicateMapsTo409(t *testing.T) {
	e := newEnv(t)
	patient := e.addPatient()
	path := fmt.Sprintf("/schedules/%s/appointments", e.schedule.ID)

	w := e.do(t, http.MethodPost, path, gin.H{"patient_id": patient.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, http.MethodPost, path, gin.H{"patient_id": patient.ID.String()})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBookEndpointUnknownScheduleMapsTo404(t *testing.T) {
	e := newEnv(t)
	patient := e.addPatient()

	w := e.do(t, http.MethodPost, fmt.Sprintf("/schedules/%s/appointments", uuid.New()), gin.H{"patient_id": patient.ID.String()})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCallNextEmptyQueueIsAccepted(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, fmt.Sprintf("/schedules/%s/call-next", e.schedule.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "no patient is waiting", resp.Message)
}

func TestActionEndpointLifecycle(t *testing.T) {
	e := newEnv(t)
	path := fmt.Sprintf("/schedules/%s/actions", e.schedule.ID)

	w := e.do(t, http.MethodPost, path, gin.H{"action": "pause"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, path, gin.H{"action": "resume"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, path, gin.H{"action": "end"})
	require.Equal(t, http.StatusOK, w.Code)

	// Calling on an ended session is a conflict.
	w = e.do(t, http.MethodPost, fmt.Sprintf("/schedules/%s/call-next", e.schedule.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unknown action fails request validation.
	w = e.do(t, http.MethodPost, path, gin.H{"action": "explode"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, fmt.Sprintf("/schedules/%s/status", e.schedule.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data model.ScheduleBoard `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, e.schedule.ID, resp.Data.Schedule.ID)
	assert.Equal(t, 5, resp.Data.Counts.Remaining)
}
