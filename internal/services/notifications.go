package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"healthcare-companion-server/internal/metrics"
	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
	"healthcare-companion-server/internal/tracing"
)

const defaultNotificationLimit = 50

// NotificationService is the in-app notification sink. Sends are
// fire-and-forget: a failed insert is logged and counted, never returned.
type NotificationService struct {
	repo    repository.NotificationRepository
	metrics *metrics.Collector
	log     *zap.Logger
	now     Clock
}

func NewNotificationService(repo repository.NotificationRepository, m *metrics.Collector, log *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, metrics: m, log: log, now: systemClock}
}

// Notify delivers a notification immediately.
func (s *NotificationService) Notify(ctx context.Context, userID string, kind models.NotificationKind, title, body string) {
	s.NotifyAt(ctx, userID, kind, title, body, s.now())
}

// NotifyAt stores a notification that becomes visible at deliverAt.
func (s *NotificationService) NotifyAt(ctx context.Context, userID string, kind models.NotificationKind, title, body string, deliverAt time.Time) {
	n := &models.Notification{
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		DeliverAt: deliverAt.UTC(),
	}
	if err := s.repo.Create(context.WithoutCancel(ctx), n); err != nil {
		s.metrics.NotificationsDropped.Inc()
		s.log.Warn("dropping notification",
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return
	}
	s.metrics.NotificationsSent.Inc()
}

// NotificationList is the inbox read model.
type NotificationList struct {
	Items  []models.Notification `json:"items"`
	Unread int64                 `json:"unread"`
}

// List returns the caller's delivered notifications, newest first.
func (s *NotificationService) List(ctx context.Context, caller Caller, limit int) (_ *NotificationList, err error) {
	ctx, span := tracing.Start(ctx, "NotificationService.List")
	defer func() { tracing.End(span, err) }()

	if caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	if limit <= 0 || limit > 200 {
		limit = defaultNotificationLimit
	}
	now := s.now().UTC()

	items, err := s.repo.ListDelivered(ctx, caller.ID, now, limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, caller.ID, now)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &NotificationList{Items: items, Unread: unread}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, caller Caller, id string) error {
	if caller.ID == "" {
		return ErrUnauthenticated
	}
	return s.repo.MarkRead(ctx, id, caller.ID, s.now().UTC())
}

// MarkAllRead marks every delivered notification read and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, caller Caller) (int64, error) {
	if caller.ID == "" {
		return 0, ErrUnauthenticated
	}
	return s.repo.MarkAllRead(ctx, caller.ID, s.now().UTC())
}
