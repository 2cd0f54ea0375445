package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/aura_cards/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) CreateCollection(ctx context.Context, collection *models.Collection, tx *gorm.DB) error {
	return r.conn(ctx, tx).Create(collection).Error
}

func (r *Repository) GetCollection(ctx context.Context, id int64, tx *gorm.DB) (*models.Collection, error) {
	var collection models.Collection
	err := r.conn(ctx, tx).First(&collection, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection %d: %w", id, err)
	}
	return &collection, nil
}

// LockCollection reads the collection and holds its row until tx ends, so
// writers of one collection's price queue on each other. sqlite has no row
// locks; its transactions already start with the write lock.
func (r *Repository) LockCollection(ctx context.Context, id int64, tx *gorm.DB) (*models.Collection, error) {
	var collection models.Collection
	err := r.conn(ctx, tx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&collection, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock collection %d: %w", id, err)
	}
	return &collection, nil
}

func (r *Repository) GetCollectionByLinkID(ctx context.Context, linkID string, tx *gorm.DB) (*models.Collection, error) {
	var collection models.Collection
	err := r.conn(ctx, tx).First(&collection, "link_id = ?", linkID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection by link id %s: %w", linkID, err)
	}
	return &collection, nil
}

// GetCollectionByCardAccessKey finds the collection holding the card with key.
func (r *Repository) GetCollectionByCardAccessKey(ctx context.Context, key string, tx *gorm.DB) (*models.Collection, error) {
	var collection models.Collection
	err := r.conn(ctx, tx).
		Select("collections.*").
		Joins("JOIN cards ON cards.collection_id = collections.id").
		Where("cards.access_key = ?", key).
		First(&collection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection by card access key: %w", err)
	}
	return &collection, nil
}

func (r *Repository) ListCollectionsByAuthor(ctx context.Context, authorID int64, tx *gorm.DB) ([]*models.Collection, error) {
	var collections []*models.Collection
	err := r.conn(ctx, tx).
		Where("author_id = ?", authorID).
		Order("created_at DESC, id DESC").
		Find(&collections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list collections of author %d: %w", authorID, err)
	}
	return collections, nil
}

// ListCollectionSummaries returns every collection with the number of cards
// it holds, empty collections included.
func (r *Repository) ListCollectionSummaries(ctx context.Context, tx *gorm.DB) ([]*models.CollectionSummary, error) {
	var summaries []*models.CollectionSummary
	err := r.conn(ctx, tx).
		Model(&models.Collection{}).
		Select("collections.id, collections.name, collections.description, collections.star_price, collections.link_id, COUNT(cards.id) AS card_count").
		Joins("LEFT JOIN cards ON cards.collection_id = collections.id").
		Group("collections.id").
		Order("collections.id ASC").
		Scan(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list collection summaries: %w", err)
	}
	return summaries, nil
}

func (r *Repository) UpdateCollectionPrice(ctx context.Context, id, price int64, tx *gorm.DB) error {
	res := r.conn(ctx, tx).Model(&models.Collection{}).Where("id = ?", id).Update("star_price", price)
	if res.Error != nil {
		return fmt.Errorf("failed to update price of collection %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListPricedTradeLinks returns the active non-gift trade links of the cards in
// a collection, newest first. Links created in the same instant are ordered by
// id so the choice of "latest" is stable.
func (r *Repository) ListPricedTradeLinks(ctx context.Context, collectionID int64, tx *gorm.DB) ([]*models.TradeLink, error) {
	var links []*models.TradeLink
	err := r.conn(ctx, tx).
		Select("trade_links.*").
		Joins("JOIN cards ON cards.id = trade_links.card_id").
		Where("cards.collection_id = ? AND trade_links.is_active = ? AND trade_links.is_gift = ?", collectionID, true, false).
		Order("trade_links.created_at DESC, trade_links.id DESC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trade links of collection %d: %w", collectionID, err)
	}
	return links, nil
}

// LinkIDExists reports whether table already holds linkID in its link_id column.
func (r *Repository) LinkIDExists(ctx context.Context, table, linkID string, tx *gorm.DB) (bool, error) {
	var count int64
	err := r.conn(ctx, tx).Table(table).Where("link_id = ?", linkID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check link id in %s: %w", table, err)
	}
	return count > 0, nil
}
