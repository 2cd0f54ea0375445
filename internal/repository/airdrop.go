package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Fi44er/aura_cards/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) CreateAirdrop(ctx context.Context, airdrop *models.Airdrop, tx *gorm.DB) error {
	return r.conn(ctx, tx).Create(airdrop).Error
}

func (r *Repository) GetAirdrop(ctx context.Context, id int64, tx *gorm.DB) (*models.Airdrop, error) {
	var airdrop models.Airdrop
	err := r.conn(ctx, tx).First(&airdrop, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get airdrop %d: %w", id, err)
	}
	return &airdrop, nil
}

func (r *Repository) GetAirdropByLinkID(ctx context.Context, linkID string, tx *gorm.DB) (*models.Airdrop, error) {
	var airdrop models.Airdrop
	err := r.conn(ctx, tx).First(&airdrop, "link_id = ?", linkID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get airdrop by link id %s: %w", linkID, err)
	}
	return &airdrop, nil
}

func (r *Repository) ListActiveAirdrops(ctx context.Context, tx *gorm.DB) ([]*models.Airdrop, error) {
	var airdrops []*models.Airdrop
	err := r.conn(ctx, tx).
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		Find(&airdrops).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active airdrops: %w", err)
	}
	return airdrops, nil
}

func (r *Repository) UpdateAirdropMessage(ctx context.Context, id, chatID, messageID int64, tx *gorm.DB) error {
	res := r.conn(ctx, tx).
		Model(&models.Airdrop{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"chat_id": chatID, "message_id": messageID})
	if res.Error != nil {
		return fmt.Errorf("failed to bind message of airdrop %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) UpdateAirdropCover(ctx context.Context, id int64, cover *string, tx *gorm.DB) error {
	res := r.conn(ctx, tx).Model(&models.Airdrop{}).Where("id = ?", id).Update("cover_image", cover)
	if res.Error != nil {
		return fmt.Errorf("failed to set cover of airdrop %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) DeactivateAirdrop(ctx context.Context, id int64, tx *gorm.DB) (bool, error) {
	res := r.conn(ctx, tx).
		Model(&models.Airdrop{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, fmt.Errorf("failed to deactivate airdrop %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AddAirdropCard puts a card into the pool. Adding a card twice is a no-op
// and reports false.
func (r *Repository) AddAirdropCard(ctx context.Context, airdropID, cardID int64, tx *gorm.DB) (bool, error) {
	row := models.AirdropCard{AirdropID: airdropID, CardID: cardID}
	res := r.conn(ctx, tx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "airdrop_id"}, {Name: "card_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to add card %d to airdrop %d: %w", cardID, airdropID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) GetAirdropStats(ctx context.Context, airdropID int64, tx *gorm.DB) (*models.AirdropStats, error) {
	var stats models.AirdropStats
	err := r.conn(ctx, tx).
		Model(&models.AirdropCard{}).
		Select("COUNT(*) AS total, COUNT(CASE WHEN is_reserved THEN NULL ELSE 1 END) AS available").
		Where("airdrop_id = ?", airdropID).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count cards of airdrop %d: %w", airdropID, err)
	}
	return &stats, nil
}

func (r *Repository) ListAvailableAirdropCards(ctx context.Context, airdropID int64, tx *gorm.DB) ([]*models.Card, error) {
	var cards []*models.Card
	err := r.conn(ctx, tx).
		Select("cards.*").
		Joins("JOIN airdrop_cards ON airdrop_cards.card_id = cards.id").
		Where("airdrop_cards.airdrop_id = ? AND airdrop_cards.is_reserved = ?", airdropID, false).
		Order("cards.card_number ASC, cards.id ASC").
		Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list available cards of airdrop %d: %w", airdropID, err)
	}
	return cards, nil
}

// PickUnreservedAirdropCard draws one unreserved pool row uniformly at random.
// It returns nil when the pool is exhausted.
func (r *Repository) PickUnreservedAirdropCard(ctx context.Context, airdropID int64, tx *gorm.DB) (*models.AirdropCard, error) {
	var row models.AirdropCard
	err := r.conn(ctx, tx).
		Where("airdrop_id = ? AND is_reserved = ?", airdropID, false).
		Order("RANDOM()").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pick card of airdrop %d: %w", airdropID, err)
	}
	return &row, nil
}

// ReserveAirdropCard flips one pool row to reserved if and only if it is still
// unreserved. The returned bool is false when another claimant got there first.
func (r *Repository) ReserveAirdropCard(ctx context.Context, rowID, claimantID int64, at time.Time, tx *gorm.DB) (bool, error) {
	res := r.conn(ctx, tx).
		Model(&models.AirdropCard{}).
		Where("id = ? AND is_reserved = ?", rowID, false).
		Updates(map[string]interface{}{
			"is_reserved": true,
			"reserved_by": claimantID,
			"reserved_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to reserve airdrop card %d: %w", rowID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) HasAirdropClaim(ctx context.Context, airdropID, claimantID int64, tx *gorm.DB) (bool, error) {
	var count int64
	err := r.conn(ctx, tx).
		Model(&models.AirdropCard{}).
		Where("airdrop_id = ? AND reserved_by = ?", airdropID, claimantID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check claims of user %d in airdrop %d: %w", claimantID, airdropID, err)
	}
	return count > 0, nil
}
