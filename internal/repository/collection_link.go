package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/aura_cards/internal/models"
	"gorm.io/gorm"
)

func (r *Repository) CreateCollectionLink(ctx context.Context, link *models.CollectionLink, tx *gorm.DB) error {
	return r.conn(ctx, tx).Create(link).Error
}

func (r *Repository) GetCollectionLinkByLinkID(ctx context.Context, linkID string, tx *gorm.DB) (*models.CollectionLink, error) {
	var link models.CollectionLink
	err := r.conn(ctx, tx).First(&link, "link_id = ?", linkID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection link %s: %w", linkID, err)
	}
	return &link, nil
}

func (r *Repository) ListActiveCollectionLinks(ctx context.Context, tx *gorm.DB) ([]*models.CollectionLink, error) {
	var links []*models.CollectionLink
	err := r.conn(ctx, tx).
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active collection links: %w", err)
	}
	return links, nil
}

func (r *Repository) DeactivateCollectionLink(ctx context.Context, id int64, tx *gorm.DB) (bool, error) {
	res := r.conn(ctx, tx).
		Model(&models.CollectionLink{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, fmt.Errorf("failed to deactivate collection link %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}
