package api

import (
	stdhttp "net/http"

	"staybackend/internal/domain"
	h "staybackend/internal/http/handlers"
	"staybackend/internal/http/middleware"
	"staybackend/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Log         *logrus.Logger
	Metrics     *metrics.Metrics
	CORSOrigins []string
	CronSecret  string
}

func NewRouter(a *h.API, opts Options) *gin.Engine {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(log), gin.Recovery(), middleware.CORS(opts.CORSOrigins), middleware.Metrics(opts.Metrics))

	if err := r.SetTrustedProxies(nil); err != nil {
		log.WithError(err).Warn("failed to set trusted proxies")
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":      "route not found",
			"code":       "not_found",
			"request_id": middleware.GetRequestID(c),
		})
	})

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	parser := a.Auth

	api := r.Group("/api")
	{
		api.GET("/health", a.Health)
		api.GET("/db-check", a.DBCheck)

		// Public
		auth := api.Group("/auth")
		auth.POST("/login", a.Login)
		auth.POST("/register", a.Register)

		api.GET("/calendar/export", a.ExportCalendar)
		api.GET("/properties/:id/availability", a.PropertyAvailability)
		api.POST("/payments/webhook", a.PaymentWebhook)

		cron := api.Group("/cron", middleware.CronAuth(opts.CronSecret, parser, parser))
		cron.GET("/cleanup-abandoned-bookings", a.CronCleanup)
		cron.POST("/cleanup-abandoned-bookings", a.ManualCleanup)

		// Authenticated
		authed := api.Group("", middleware.Authenticate(parser), middleware.RequireAuth(), middleware.FreshRole(parser, false))

		bookings := authed.Group("/bookings")
		bookings.POST("", a.CreateBooking)
		bookings.GET("/mine", a.ListMyBookings)
		bookings.GET("/:id", a.GetBooking)
		bookings.POST("/:id/accept", a.AcceptBooking)
		bookings.POST("/:id/reject", a.RejectBooking)
		bookings.POST("/:id/cancel", a.CancelBooking)
		bookings.POST("/:id/complete", a.CompleteBooking)
		bookings.GET("/:id/receipt", a.BookingReceipt)

		authed.GET("/properties/:id/bookings", a.ListPropertyBookings)

		blocked := authed.Group("/blocked-dates")
		blocked.GET("", a.ListBlockedDates)
		blocked.POST("", middleware.RequireRoles(domain.RoleHost, domain.RoleAdmin), a.CreateBlockedDate)
		blocked.DELETE("/:id", middleware.RequireRoles(domain.RoleHost, domain.RoleAdmin), a.DeleteBlockedDate)

		payments := authed.Group("/payments")
		payments.POST("/create-payment-intent", a.CreatePaymentIntent)
		payments.POST("/handle-payment-response", a.HandlePaymentResponse)
		payments.GET("/:bookingId/status", a.PaymentStatus)

		notifications := authed.Group("/notifications")
		notifications.GET("", a.ListNotifications)
		notifications.POST("/:id/read", a.MarkNotificationRead)

		admin := authed.Group("/admin", middleware.FreshRole(parser, true), middleware.RequireRoles(domain.RoleAdmin))
		admin.GET("/bookings", a.AdminListBookings)
		admin.GET("/activity-logs", a.AdminActivityLogs)
		admin.POST("/bookings/:id/refund", a.AdminRefundBooking)
	}

	return r
}
