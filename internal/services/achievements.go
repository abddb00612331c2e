package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"healthcare-companion-server/internal/achievements"
	"healthcare-companion-server/internal/metrics"
	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
	"healthcare-companion-server/internal/tracing"
)

// AchievementService persists progress counters and runs the unlock engine.
type AchievementService struct {
	users    repository.UserRepository
	notifier *NotificationService
	metrics  *metrics.Collector
	log      *zap.Logger
}

func NewAchievementService(users repository.UserRepository, notifier *NotificationService, m *metrics.Collector, log *zap.Logger) *AchievementService {
	return &AchievementService{users: users, notifier: notifier, metrics: m, log: log}
}

// ProgressResult is returned to clients after a progress update.
type ProgressResult struct {
	NewlyUnlocked []string             `json:"newlyUnlocked"`
	Summary       achievements.Summary `json:"summary"`
}

// Summary returns the caller's achievements joined with the catalog.
func (s *AchievementService) Summary(ctx context.Context, caller Caller) (*achievements.Summary, error) {
	if caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	u, err := s.users.GetByID(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	summary := achievements.Summarize(u.Achievements, u.Role)
	return &summary, nil
}

// UpdateProgress applies a client-reported counter change. Counters the
// server maintains itself are not reportable.
func (s *AchievementService) UpdateProgress(ctx context.Context, caller Caller, key string, u achievements.Update) (_ *ProgressResult, err error) {
	ctx, span := tracing.Start(ctx, "AchievementService.UpdateProgress", attribute.String("progress.key", key))
	defer func() { tracing.End(span, err) }()

	if caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	if !achievements.IsReportable(key) {
		return nil, invalid(fmt.Sprintf("key: %q cannot be reported by clients", key))
	}
	if err := u.Validate(); err != nil {
		return nil, invalid(err.Error())
	}

	user, unlocked, err := s.apply(ctx, caller.ID, key, u)
	if err != nil {
		return nil, err
	}
	return &ProgressResult{
		NewlyUnlocked: achievements.Titles(unlocked),
		Summary:       achievements.Summarize(user.Achievements, user.Role),
	}, nil
}

// Record applies a server-side counter change for userID. Unlocks are
// counted and announced to the user.
func (s *AchievementService) Record(ctx context.Context, userID, key string, u achievements.Update) ([]achievements.Achievement, error) {
	_, unlocked, err := s.apply(ctx, userID, key, u)
	return unlocked, err
}

// track is Record for work that already committed: failures are logged.
func (s *AchievementService) track(ctx context.Context, userID, key string, u achievements.Update) {
	sideEffect(ctx, s.log, "progress:"+key, func(ctx context.Context) error {
		_, err := s.Record(ctx, userID, key, u)
		return err
	})
}

func (s *AchievementService) apply(ctx context.Context, userID, key string, u achievements.Update) (*models.User, []achievements.Achievement, error) {
	var unlocked []achievements.Achievement
	user, err := s.users.Update(ctx, userID, func(user *models.User) error {
		unlocked = achievements.Apply(&user.Achievements, user.Role, key, u)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("updating progress %s: %w", key, err)
	}

	if len(unlocked) > 0 {
		s.metrics.AchievementsUnlocked.WithLabelValues(string(user.Role)).Add(float64(len(unlocked)))
		titles := achievements.Titles(unlocked)
		s.log.Info("achievements unlocked",
			zap.String("user_id", userID),
			zap.Strings("titles", titles),
			zap.Int("score", user.Achievements.Score),
		)
		s.notifier.Notify(ctx, userID, models.NotificationAchievement,
			"Achievement unlocked",
			"You earned: "+strings.Join(titles, ", "))
	}
	return user, unlocked, nil
}
