package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicdesk/registration-api/internal/handler/appointment"
	"github.com/clinicdesk/registration-api/internal/handler/auth"
	"github.com/clinicdesk/registration-api/internal/handler/report"
	"github.com/clinicdesk/registration-api/internal/handler/schedule"
	"github.com/clinicdesk/registration-api/internal/middleware"
	"github.com/clinicdesk/registration-api/internal/model"
)

type Router struct {
	engine       *gin.Engine
	auth         *middleware.AuthMiddleware
	authH        *auth.Handler
	scheduleH    *schedule.Handler
	appointmentH *appointment.Handler
	reportH      *report.Handler
	metrics      *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

type Config struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MetricsPrefix  string
}

func NewRouter(
	authMW *middleware.AuthMiddleware,
	authH *auth.Handler,
	scheduleH *schedule.Handler,
	appointmentH *appointment.Handler,
	reportH *report.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	if config.MetricsPrefix == "" {
		config.MetricsPrefix = "registration"
	}
	if config.RateLimitRPS <= 0 {
		config.RateLimitRPS = 50
	}
	if config.RateLimitBurst <= 0 {
		config.RateLimitBurst = 100
	}

	r := &Router{
		engine:       engine,
		auth:         authMW,
		authH:        authH,
		scheduleH:    scheduleH,
		appointmentH: appointmentH,
		reportH:      reportH,
		metrics:      initRouterMetrics(config.MetricsPrefix),
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		r.metricsMiddleware(),
	)

	rateLimiter := middleware.NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	// Public routes
	api.POST("/auth/login", r.authH.Login)
	board := api.Group("")
	board.Use(middleware.CacheControl(2 * time.Second))
	{
		board.GET("/schedules/:id/status", r.scheduleH.GetStatus)
		board.GET("/boards", r.scheduleH.ListBoards)
	}
	api.GET("/schedules", r.scheduleH.ListSchedules)
	api.GET("/schedules/:id", r.scheduleH.GetSchedule)

	// Authenticated routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	{
		protected.POST("/schedules/:id/appointments", r.scheduleH.Book)
		protected.GET("/appointments", r.appointmentH.ListMine)
		protected.GET("/appointments/:id/progress", r.appointmentH.GetProgress)
		protected.POST("/appointments/:id/cancel", r.appointmentH.Cancel)
	}

	// Staff and doctor operations
	staff := protected.Group("")
	staff.Use(r.auth.RequireRole(model.RoleStaff, model.RoleDoctor))
	{
		staff.POST("/appointments/:id/check-in", r.appointmentH.CheckIn)
		staff.GET("/appointments/:id/history", r.appointmentH.GetHistory)
		staff.GET("/schedules/:id/events", r.scheduleH.ListEvents)
	}

	doctors := protected.Group("")
	doctors.Use(r.auth.RequireRole(model.RoleDoctor))
	{
		doctors.POST("/schedules/:id/call-next", r.scheduleH.CallNext)
		doctors.POST("/schedules/:id/actions", r.scheduleH.Action)
		doctors.POST("/appointments/:id/complete", r.appointmentH.Complete)
	}

	admin := protected.Group("")
	admin.Use(r.auth.RequireRole(model.RoleAdmin))
	{
		admin.POST("/schedules", r.scheduleH.CreateSchedule)
		admin.GET("/reports/appointments", r.reportH.GetAppointments)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	m := &routerMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
	prometheus.MustRegister(m.requestDuration, m.requestTotal)
	return m
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
