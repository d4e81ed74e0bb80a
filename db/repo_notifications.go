// db/repo_notifications.go
package db

import (
	"context"
	"fmt"

	"asset_gatepass_tool/models"

	"gorm.io/gorm"
)

// notify appends one notification row inside the caller's transaction, so
// a committed transition always carries its messages and a rolled-back one
// leaves none behind.
func (r *Repo) notify(tx *gorm.DB, userID, message string, sev models.Severity) error {
	n := &models.Notification{
		ID:        r.NewID(),
		UserID:    userID,
		Message:   message,
		Severity:  sev,
		CreatedAt: r.Now(),
	}
	return tx.Create(n).Error
}

// notifyAdmins fans one message out to every active admin.
func (r *Repo) notifyAdmins(tx *gorm.DB, message string, sev models.Severity) error {
	var ids []string
	if err := tx.Model(&models.User{}).
		Where("role = ? AND is_active", models.RoleAdmin).
		Pluck("id", &ids).Error; err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.notify(tx, id, message, sev); err != nil {
			return err
		}
	}
	return nil
}

type PagedNotifications struct {
	Total  int64                 `json:"total"`
	Unread int64                 `json:"unread"`
	Items  []models.Notification `json:"items"`
}

func (r *Repo) ListNotifications(ctx context.Context, userID string, unreadOnly bool, page, size int) (*PagedNotifications, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 50
	}

	base := r.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ?", userID)

	var unread int64
	if err := base.Session(&gorm.Session{}).Where("NOT read").Count(&unread).Error; err != nil {
		return nil, err
	}

	tx := base.Session(&gorm.Session{})
	if unreadOnly {
		tx = tx.Where("NOT read")
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}
	var items []models.Notification
	if err := tx.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return &PagedNotifications{Total: total, Unread: unread, Items: items}, nil
}

// MarkNotificationRead is owner-scoped; you cannot read someone else's
// mail for them.
func (r *Repo) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	res := r.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	return nil
}

func (r *Repo) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND NOT read", userID).
		Update("read", true)
	return res.RowsAffected, res.Error
}
