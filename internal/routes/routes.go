package routes

import (
	"github.com/gin-gonic/gin"

	"healthcare-companion-server/internal/config"
	"healthcare-companion-server/internal/handlers"
	"healthcare-companion-server/internal/metrics"
	"healthcare-companion-server/internal/middleware"
	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/services"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Config        *config.Config
	Metrics       *metrics.Collector
	Auth          *services.AuthService
	Users         *services.UserService
	Schedule      *services.ScheduleService
	Appointments  *services.AppointmentService
	Prescriptions *services.PrescriptionService
	Medications   *services.MedicationService
	Achievements  *services.AchievementService
	Notifications *services.NotificationService
	Reports       *services.ReportService
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Auth, d.Config)
	userHandler := handlers.NewUserHandler(d.Users, d.Schedule)
	appointmentHandler := handlers.NewAppointmentHandler(d.Appointments, d.Prescriptions)
	medicationHandler := handlers.NewMedicationHandler(d.Medications)
	achievementHandler := handlers.NewAchievementHandler(d.Achievements)
	notificationHandler := handlers.NewNotificationHandler(d.Notifications)
	reportHandler := handlers.NewReportHandler(d.Reports)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(d.Config))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
			authRoutesPrivate.DELETE("/account-data", middleware.RoleAuthMiddleware(models.RolePatient), authHandler.ResetAccountData)
		}

		userRoutes := private.Group("/users")
		{
			userRoutes.GET("/doctors", userHandler.GetDoctors)
			userRoutes.GET("/doctor-patients", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), userHandler.GetDoctorPatients)

			userRoutes.GET("/doctors/:id/availability", userHandler.GetDoctorAvailability)
			userRoutes.GET("/doctors/:id/slots", userHandler.GetDoctorSlots)

			doctorRoutes := userRoutes.Group("/me")
			doctorRoutes.Use(middleware.RoleAuthMiddleware(models.RoleDoctor))
			{
				doctorRoutes.GET("/availability", userHandler.GetMyAvailability)
				doctorRoutes.PUT("/availability", userHandler.UpdateMyAvailability)
			}

			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.GET("", userHandler.GetUsers)
				adminRoutes.GET("/:id", userHandler.GetUserByID)
				adminRoutes.PUT("/:id", userHandler.UpdateUser)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient), appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointmentsForUser)
			appointmentRoutes.PATCH("/order", middleware.RoleAuthMiddleware(models.RoleDoctor), appointmentHandler.UpdateOrder)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.PATCH("/:id/status", appointmentHandler.UpdateAppointmentStatus)
			appointmentRoutes.PATCH("/:id/priority", middleware.RoleAuthMiddleware(models.RoleDoctor), appointmentHandler.UpdatePriority)

			appointmentRoutes.POST("/:id/reschedule", middleware.RoleAuthMiddleware(models.RolePatient), appointmentHandler.RequestReschedule)
			appointmentRoutes.PATCH("/:id/reschedule", middleware.RoleAuthMiddleware(models.RoleDoctor), appointmentHandler.ResolveReschedule)
			appointmentRoutes.POST("/:id/reschedule/accept", middleware.RoleAuthMiddleware(models.RolePatient), appointmentHandler.AcceptSuggestion)

			appointmentRoutes.POST("/:id/prescription", middleware.RoleAuthMiddleware(models.RoleDoctor), appointmentHandler.IssuePrescription)
		}

		private.GET("/prescriptions", appointmentHandler.GetPrescriptions)

		medicationRoutes := private.Group("/medications")
		{
			medicationRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient), medicationHandler.CreateMedication)
			medicationRoutes.GET("", medicationHandler.GetMedications)
			medicationRoutes.GET("/stats", middleware.RoleAuthMiddleware(models.RolePatient), medicationHandler.GetStats)
			medicationRoutes.PATCH("/:id/taken", middleware.RoleAuthMiddleware(models.RolePatient), medicationHandler.ToggleTaken)
			medicationRoutes.PATCH("/:id/deactivate", middleware.RoleAuthMiddleware(models.RolePatient), medicationHandler.DeactivateMedication)
		}

		achievementRoutes := private.Group("/achievements")
		{
			achievementRoutes.GET("", achievementHandler.GetAchievements)
			achievementRoutes.POST("/progress", achievementHandler.UpdateProgress)
		}

		notificationRoutes := private.Group("/notifications")
		{
			notificationRoutes.GET("", notificationHandler.GetNotifications)
			notificationRoutes.PATCH("/read-all", notificationHandler.MarkAllAsRead)
			notificationRoutes.PATCH("/:id/read", notificationHandler.MarkNotificationAsRead)
		}

		reportRoutes := private.Group("/reports")
		{
			reportRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient), reportHandler.UploadReport)
			reportRoutes.GET("", reportHandler.GetReports)
			reportRoutes.GET("/:id/download", reportHandler.DownloadReport)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
}
