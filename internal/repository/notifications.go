package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"healthcare-companion-server/internal/models"
)

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListDelivered(ctx context.Context, userID string, now time.Time, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string, now time.Time) (int64, error)
	MarkRead(ctx context.Context, id, userID string, now time.Time) error
	MarkAllRead(ctx context.Context, userID string, now time.Time) (int64, error)
}

// Notifications implements NotificationRepository with gorm.
type Notifications struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *Notifications {
	return &Notifications{db: db}
}

func (r *Notifications) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// ListDelivered returns notifications whose delivery time has passed, newest first.
func (r *Notifications) ListDelivered(ctx context.Context, userID string, now time.Time, limit int) ([]models.Notification, error) {
	var list []models.Notification
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND deliver_at <= ?", userID, now).
		Order("deliver_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&list).Error
	return list, err
}

func (r *Notifications) CountUnread(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND deliver_at <= ? AND is_read = ?", userID, now, false).
		Count(&n).Error
	return n, err
}

func (r *Notifications) MarkRead(ctx context.Context, id, userID string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND deliver_at <= ?", id, userID, now).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *Notifications) MarkAllRead(ctx context.Context, userID string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND deliver_at <= ? AND is_read = ?", userID, now, false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	return res.RowsAffected, res.Error
}
