package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/aura_cards/internal/models"
	"gorm.io/gorm"
)

func (r *Repository) CreateTradeLink(ctx context.Context, link *models.TradeLink, tx *gorm.DB) error {
	return r.conn(ctx, tx).Create(link).Error
}

func (r *Repository) GetTradeLinkByLinkID(ctx context.Context, linkID string, tx *gorm.DB) (*models.TradeLink, error) {
	var link models.TradeLink
	err := r.conn(ctx, tx).First(&link, "link_id = ?", linkID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trade link %s: %w", linkID, err)
	}
	return &link, nil
}

func (r *Repository) ListActiveTradeLinks(ctx context.Context, tx *gorm.DB) ([]*models.TradeLink, error) {
	var links []*models.TradeLink
	err := r.conn(ctx, tx).
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active trade links: %w", err)
	}
	return links, nil
}

// DeactivateTradeLink closes an active link. It reports false when the link
// was already closed, so two redeemers can never both win it.
func (r *Repository) DeactivateTradeLink(ctx context.Context, id int64, tx *gorm.DB) (bool, error) {
	res := r.conn(ctx, tx).
		Model(&models.TradeLink{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, fmt.Errorf("failed to deactivate trade link %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}
