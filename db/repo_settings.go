// db/repo_settings.go
package db

import (
	"context"
	"strings"

	"asset_gatepass_tool/models"

	"gorm.io/gorm/clause"
)

func (r *Repo) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	var s models.Setting
	if err := r.DB.WithContext(ctx).First(&s, "key = ?", key).Error; err != nil {
		return nil, wrapNotFound(err, "setting", key)
	}
	return &s, nil
}

func (r *Repo) PutSetting(ctx context.Context, key, value, updatedBy string) (*models.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrValidation
	}
	s := &models.Setting{Key: key, Value: value, UpdatedBy: updatedBy, UpdatedAt: r.Now()}
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(s).Error
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repo) ListSettings(ctx context.Context) ([]models.Setting, error) {
	var ss []models.Setting
	err := r.DB.WithContext(ctx).Order("key ASC").Find(&ss).Error
	return ss, err
}
