package service

import (
	"context"
	"errors"

	"github.com/Fi44er/aura_cards/internal/models"
	"github.com/Fi44er/aura_cards/utils"
	"gorm.io/gorm"
)

const reservationAvailable = "available"

func (s *Service) CreateCollection(ctx context.Context, input NewCollection) (*models.Collection, error) {
	if err := s.check(input); err != nil {
		return nil, err
	}

	var collection *models.Collection
	err := s.insertWithRetry(ctx, "create collection", func(tx *gorm.DB) error {
		author, err := s.repo.GetUser(ctx, input.AuthorID, tx)
		if err != nil {
			return err
		}
		if author == nil {
			return notFound("user", input.AuthorID)
		}

		linkID, err := s.uniqueLinkID(ctx, collectionsTable, shareLinkID, tx)
		if err != nil {
			return err
		}

		collection = &models.Collection{
			Name:              input.Name,
			Description:       input.Description,
			AuthorID:          input.AuthorID,
			StarPrice:         defaultStarPrice,
			LinkID:            linkID,
			ReservationStatus: reservationAvailable,
		}
		if input.StarPrice != nil {
			collection.StarPrice = *input.StarPrice
		}
		return s.repo.CreateCollection(ctx, collection, tx)
	})
	if err != nil {
		return nil, s.fail("create collection", err)
	}

	s.logger.Infof("Collection %q created with link %s", collection.Name, collection.LinkID)
	return collection, nil
}

func (s *Service) GetCollection(ctx context.Context, id int64) (*models.Collection, error) {
	collection, err := s.repo.GetCollection(ctx, id, nil)
	if err != nil {
		return nil, s.fail("get collection", err)
	}
	return collection, nil
}

func (s *Service) FindCollectionByLinkID(ctx context.Context, linkID string) (*models.Collection, error) {
	if !utils.IsLinkID(linkID) {
		return nil, invalid("link_id", "must be 16 lowercase hex characters")
	}

	collection, err := s.repo.GetCollectionByLinkID(ctx, linkID, nil)
	if err != nil {
		return nil, s.fail("find collection by link id", err)
	}
	return collection, nil
}

func (s *Service) FindCollectionByCardAccessKey(ctx context.Context, key string) (*models.Collection, error) {
	if !utils.IsAccessKey(key) {
		return nil, invalid("access_key", "must match XXXX-XXXX-XXXX")
	}

	collection, err := s.repo.GetCollectionByCardAccessKey(ctx, key, nil)
	if err != nil {
		return nil, s.fail("find collection by card access key", err)
	}
	return collection, nil
}

func (s *Service) ListCollectionsByAuthor(ctx context.Context, authorID int64) ([]*models.Collection, error) {
	collections, err := s.repo.ListCollectionsByAuthor(ctx, authorID, nil)
	if err != nil {
		return nil, s.fail("list collections by author", err)
	}
	return collections, nil
}

func (s *Service) ListCollectionSummaries(ctx context.Context) ([]*models.CollectionSummary, error) {
	summaries, err := s.repo.ListCollectionSummaries(ctx, nil)
	if err != nil {
		return nil, s.fail("list collection summaries", err)
	}
	return summaries, nil
}

// AddCardToCollection moves a card into a collection. Prices of the old and
// the new collection are recomputed afterwards.
func (s *Service) AddCardToCollection(ctx context.Context, collectionID, cardID int64) (*models.Card, error) {
	var (
		card     *models.Card
		previous *int64
	)
	err := s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		collection, err := s.repo.GetCollection(ctx, collectionID, tx)
		if err != nil {
			return err
		}
		if collection == nil {
			return notFound("collection", collectionID)
		}

		card, err = s.repo.GetCard(ctx, cardID, tx)
		if err != nil {
			return err
		}
		if card == nil {
			return notFound("card", cardID)
		}

		previous = card.CollectionID
		card.CollectionID = &collection.ID
		return s.repo.SetCardCollection(ctx, card.ID, card.CollectionID, tx)
	})
	if err != nil {
		return nil, s.fail("add card to collection", err)
	}

	if previous != nil && *previous != collectionID {
		s.refreshCollectionPrice(ctx, *previous)
	}
	s.refreshCollectionPrice(ctx, collectionID)
	return card, nil
}

// SetCollectionPrice fixes the price by hand. The next recompute replaces it.
func (s *Service) SetCollectionPrice(ctx context.Context, collectionID, price int64) error {
	if price < 0 {
		return invalid("star_price", "must not be negative")
	}

	err := s.repo.UpdateCollectionPrice(ctx, collectionID, price, nil)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("collection", collectionID)
	}
	if err != nil {
		return s.fail("set collection price", err)
	}
	return nil
}
