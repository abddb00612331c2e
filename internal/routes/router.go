package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"healthcare-companion-server/internal/config"
	"healthcare-companion-server/internal/metrics"
	"healthcare-companion-server/internal/middleware"
	"healthcare-companion-server/internal/repository"
	"healthcare-companion-server/internal/scheduling"
	"healthcare-companion-server/internal/services"
)

// NewDeps builds the repositories and services over an open database.
func NewDeps(cfg *config.Config, db *gorm.DB, m *metrics.Collector, log *zap.Logger) Deps {
	users := repository.NewUserRepository(db)
	tokens := repository.NewTokenRepository(db)
	appts := repository.NewAppointmentRepository(db)
	meds := repository.NewMedicationRepository(db)
	prescriptions := repository.NewPrescriptionRepository(db)
	notifications := repository.NewNotificationRepository(db)
	reports := repository.NewReportRepository(db)

	loc := cfg.Scheduling.Location()
	resolver := scheduling.NewResolver(cfg.Scheduling.SlotStep(), loc)

	notifier := services.NewNotificationService(notifications, m, log.Named("notifications"))
	achievementSvc := services.NewAchievementService(users, notifier, m, log.Named("achievements"))

	return Deps{
		Config:        cfg,
		Metrics:       m,
		Auth:          services.NewAuthService(users, tokens, achievementSvc, cfg, log.Named("auth")),
		Users:         services.NewUserService(users, log.Named("users")),
		Schedule:      services.NewScheduleService(users, appts, resolver, log.Named("schedule")),
		Appointments:  services.NewAppointmentService(appts, users, achievementSvc, notifier, m, loc, log.Named("appointments")),
		Prescriptions: services.NewPrescriptionService(prescriptions, achievementSvc, notifier, m, log.Named("prescriptions")),
		Medications:   services.NewMedicationService(meds, appts, achievementSvc, m, loc, log.Named("medications")),
		Achievements:  achievementSvc,
		Notifications: notifier,
		Reports:       services.NewReportService(reports, users, appts, achievementSvc, log.Named("reports")),
	}
}

// NewRouter returns a gin engine with the global middleware chain and every
// route registered.
func NewRouter(d Deps, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{d.Config.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Retry-After", "Content-Disposition"}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.RequestLogger(log))
	if d.Metrics != nil {
		router.Use(middleware.Metrics(d.Metrics))
	}
	router.Use(middleware.RateLimit(d.Config.RateLimit, d.Metrics))

	SetupRoutes(router, d)
	return router
}
