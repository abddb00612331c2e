package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"healthcare-companion-server/internal/config"
	"healthcare-companion-server/internal/metrics"
	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
	"healthcare-companion-server/internal/scheduling"
)

// monday0800 is Monday 2024-03-04 08:00 UTC.
var monday0800 = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	now     time.Time
	metrics *metrics.Collector

	users         *repository.Users
	appts         *repository.Appointments
	meds          *repository.Medications
	notifications *repository.Notifications

	notifier      *NotificationService
	achievements  *AchievementService
	appointments  *AppointmentService
	schedule      *ScheduleService
	medications   *MedicationService
	prescriptions *PrescriptionService
	reports       *ReportService
	auth          *AuthService
	userAdmin     *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.Migrate(db))

	e := &testEnv{now: monday0800, metrics: metrics.NewCollector("test")}
	clock := func() time.Time { return e.now }
	log := zap.NewNop()

	e.users = repository.NewUserRepository(db)
	e.appts = repository.NewAppointmentRepository(db)
	e.meds = repository.NewMedicationRepository(db)
	e.notifications = repository.NewNotificationRepository(db)

	e.notifier = NewNotificationService(e.notifications, e.metrics, log)
	e.notifier.now = clock
	e.achievements = NewAchievementService(e.users, e.notifier, e.metrics, log)

	e.appointments = NewAppointmentService(e.appts, e.users, e.achievements, e.notifier, e.metrics, time.UTC, log)
	e.appointments.now = clock

	e.schedule = NewScheduleService(e.users, e.appts, scheduling.NewResolver(scheduling.DefaultStep, time.UTC), log)
	e.schedule.now = clock

	e.medications = NewMedicationService(e.meds, e.appts, e.achievements, e.metrics, time.UTC, log)
	e.medications.now = clock

	e.prescriptions = NewPrescriptionService(repository.NewPrescriptionRepository(db), e.achievements, e.notifier, e.metrics, log)
	e.prescriptions.now = clock

	e.reports = NewReportService(repository.NewReportRepository(db), e.users, e.appts, e.achievements, log)

	cfg := &config.Config{
		JWTSecret:                 "access-secret-for-tests",
		JWTRefreshSecret:          "refresh-secret-for-tests",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
	}
	e.auth = NewAuthService(e.users, repository.NewTokenRepository(db), e.achievements, cfg, log)
	e.auth.now = clock
	e.userAdmin = NewUserService(e.users, log)
	return e
}

func (e *testEnv) seed(t *testing.T, role models.Role) Caller {
	t.Helper()
	u := &models.User{
		Email:     uuid.NewString() + "@example.com",
		Password:  "x",
		FirstName: "Test",
		LastName:  string(role),
		Role:      role,
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return Caller{ID: u.ID, Role: role}
}

func (e *testEnv) progress(t *testing.T, userID string) models.AchievementProgress {
	t.Helper()
	u, err := e.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return u.Achievements
}

func (e *testEnv) inbox(t *testing.T, userID string) []models.Notification {
	t.Helper()
	list, err := e.notifications.ListDelivered(context.Background(), userID, e.now.UTC(), 100)
	require.NoError(t, err)
	return list
}

func kinds(list []models.Notification) []models.NotificationKind {
	out := make([]models.NotificationKind, 0, len(list))
	for _, n := range list {
		out = append(out, n.Kind)
	}
	return out
}

// at returns epoch ms for hh:mm on the env's current day.
func (e *testEnv) at(hour, minute int) int64 {
	y, m, d := e.now.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, time.UTC).UnixMilli()
}
