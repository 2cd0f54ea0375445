package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/aura_cards/internal/models"
	"gorm.io/gorm"
)

// Columns UpdateCard may touch. owner_id changes only through UpdateCardOwner
// and access_key never changes once assigned.
var cardUpdateColumns = []string{
	"name", "registration_date", "expires", "engraving_color",
	"has_background", "collection_id", "star_price",
}

func (r *Repository) CreateCard(ctx context.Context, card *models.Card, tx *gorm.DB) error {
	return r.conn(ctx, tx).Create(card).Error
}

func (r *Repository) GetCard(ctx context.Context, id int64, tx *gorm.DB) (*models.Card, error) {
	var card models.Card
	err := r.conn(ctx, tx).First(&card, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get card %d: %w", id, err)
	}
	return &card, nil
}

func (r *Repository) GetCardByNumber(ctx context.Context, number int64, tx *gorm.DB) (*models.Card, error) {
	var card models.Card
	err := r.conn(ctx, tx).Where("card_number = ?", number).Order("id ASC").First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get card by number %d: %w", number, err)
	}
	return &card, nil
}

func (r *Repository) GetCardByAccessKey(ctx context.Context, key string, tx *gorm.DB) (*models.Card, error) {
	if cached, ok := r.keyCache.Get(key); ok {
		card, err := r.GetCard(ctx, cached.(int64), tx)
		if err != nil {
			return nil, err
		}
		if card != nil && card.AccessKey != nil && *card.AccessKey == key {
			return card, nil
		}
		r.keyCache.Remove(key)
	}

	var card models.Card
	err := r.conn(ctx, tx).First(&card, "access_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get card by access key: %w", err)
	}

	r.keyCache.Add(key, card.ID)
	return &card, nil
}

func (r *Repository) AccessKeyExists(ctx context.Context, key string, tx *gorm.DB) (bool, error) {
	if r.keyCache.Contains(key) {
		return true, nil
	}

	var count int64
	err := r.conn(ctx, tx).Model(&models.Card{}).Where("access_key = ?", key).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check access key: %w", err)
	}
	return count > 0, nil
}

// NextCardNumber is one past the highest card number in use.
func (r *Repository) NextCardNumber(ctx context.Context, tx *gorm.DB) (int64, error) {
	var highest int64
	err := r.conn(ctx, tx).Model(&models.Card{}).Select("COALESCE(MAX(card_number), 0)").Scan(&highest).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get max card number: %w", err)
	}
	return highest + 1, nil
}

func (r *Repository) ListCardsByOwner(ctx context.Context, ownerID int64, tx *gorm.DB) ([]*models.Card, error) {
	var cards []*models.Card
	err := r.conn(ctx, tx).
		Where("owner_id = ?", ownerID).
		Order("card_number ASC, id ASC").
		Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cards of owner %d: %w", ownerID, err)
	}
	return cards, nil
}

func (r *Repository) ListCardsByCollection(ctx context.Context, collectionID int64, tx *gorm.DB) ([]*models.Card, error) {
	var cards []*models.Card
	err := r.conn(ctx, tx).
		Where("collection_id = ?", collectionID).
		Order("card_number ASC, id ASC").
		Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cards of collection %d: %w", collectionID, err)
	}
	return cards, nil
}

func (r *Repository) UpdateCard(ctx context.Context, card *models.Card, tx *gorm.DB) error {
	res := r.conn(ctx, tx).Model(card).Select(cardUpdateColumns).Updates(card)
	if res.Error != nil {
		return fmt.Errorf("failed to update card %d: %w", card.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateCardOwner is the ownership transfer. It reports gorm.ErrRecordNotFound
// when the card is gone.
func (r *Repository) UpdateCardOwner(ctx context.Context, cardID, ownerID int64, tx *gorm.DB) error {
	res := r.conn(ctx, tx).Model(&models.Card{}).Where("id = ?", cardID).Update("owner_id", ownerID)
	if res.Error != nil {
		return fmt.Errorf("failed to transfer card %d: %w", cardID, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) SetCardCollection(ctx context.Context, cardID int64, collectionID *int64, tx *gorm.DB) error {
	res := r.conn(ctx, tx).Model(&models.Card{}).Where("id = ?", cardID).Update("collection_id", collectionID)
	if res.Error != nil {
		return fmt.Errorf("failed to set collection of card %d: %w", cardID, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteCard removes the card with its airdrop pool rows and closes its trade
// links. Run it inside a transaction so the three writes land together.
func (r *Repository) DeleteCard(ctx context.Context, card *models.Card, tx *gorm.DB) error {
	db := r.conn(ctx, tx)

	if err := db.Where("card_id = ?", card.ID).Delete(&models.AirdropCard{}).Error; err != nil {
		return fmt.Errorf("failed to remove card %d from airdrops: %w", card.ID, err)
	}

	err := db.Model(&models.TradeLink{}).
		Where("card_id = ? AND is_active = ?", card.ID, true).
		Update("is_active", false).Error
	if err != nil {
		return fmt.Errorf("failed to close trade links of card %d: %w", card.ID, err)
	}

	res := db.Delete(&models.Card{}, card.ID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete card %d: %w", card.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	if card.AccessKey != nil {
		r.keyCache.Remove(*card.AccessKey)
	}
	return nil
}
