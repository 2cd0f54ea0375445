package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/aura_cards/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) GetUser(ctx context.Context, id int64, tx *gorm.DB) (*models.User, error) {
	var user models.User
	err := r.conn(ctx, tx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &user, nil
}

func (r *Repository) GetUserByTelegramID(ctx context.Context, telegramID int64, tx *gorm.DB) (*models.User, error) {
	var user models.User
	err := r.conn(ctx, tx).First(&user, "telegram_id = ?", telegramID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by telegram id %d: %w", telegramID, err)
	}
	return &user, nil
}

// UpsertUser inserts the user or refreshes the profile of the row with the
// same telegram id. created_at of an existing row is kept.
func (r *Repository) UpsertUser(ctx context.Context, user *models.User, tx *gorm.DB) (*models.User, error) {
	err := r.conn(ctx, tx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "is_admin"}),
		}).
		Create(user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user %d: %w", user.TelegramID, err)
	}

	stored, err := r.GetUserByTelegramID(ctx, user.TelegramID, tx)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("user %d missing after upsert", user.TelegramID)
	}
	return stored, nil
}
