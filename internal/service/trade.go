package service

import (
	"context"

	"github.com/Fi44er/aura_cards/internal/models"
	"gorm.io/gorm"
)

// CreateTradeLink lists a card for sale. Only the current owner can list it;
// gifts always carry price 0.
func (s *Service) CreateTradeLink(ctx context.Context, input NewTradeLink) (*models.TradeLink, error) {
	if err := s.check(input); err != nil {
		return nil, err
	}

	var (
		link *models.TradeLink
		card *models.Card
	)
	err := s.insertWithRetry(ctx, "create trade link", func(tx *gorm.DB) error {
		var err error
		card, err = s.repo.GetCard(ctx, input.CardID, tx)
		if err != nil {
			return err
		}
		if card == nil {
			return notFound("card", input.CardID)
		}
		if card.OwnerID != input.SellerID {
			return invalid("seller_id", "does not own the card")
		}

		linkID, err := s.uniqueLinkID(ctx, tradeLinksTable, listingLinkID, tx)
		if err != nil {
			return err
		}

		link = &models.TradeLink{
			LinkID:   linkID,
			CardID:   input.CardID,
			SellerID: input.SellerID,
			Price:    input.Price,
			IsGift:   input.IsGift,
			IsActive: true,
		}
		if link.IsGift {
			link.Price = 0
		}
		return s.repo.CreateTradeLink(ctx, link, tx)
	})
	if err != nil {
		return nil, s.fail("create trade link", err)
	}

	if card.CollectionID != nil && !link.IsGift {
		s.refreshCollectionPrice(ctx, *card.CollectionID)
	}
	return link, nil
}

func (s *Service) FindTradeLink(ctx context.Context, linkID string) (*models.TradeLink, error) {
	link, err := s.repo.GetTradeLinkByLinkID(ctx, linkID, nil)
	if err != nil {
		return nil, s.fail("find trade link", err)
	}
	return link, nil
}

func (s *Service) ListActiveTradeLinks(ctx context.Context) ([]*models.TradeLink, error) {
	links, err := s.repo.ListActiveTradeLinks(ctx, nil)
	if err != nil {
		return nil, s.fail("list active trade links", err)
	}
	return links, nil
}

// DeactivateTradeLink closes a listing. Closing a closed listing reports
// ErrLinkInactive.
func (s *Service) DeactivateTradeLink(ctx context.Context, linkID string) error {
	var card *models.Card
	err := s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		link, err := s.repo.GetTradeLinkByLinkID(ctx, linkID, tx)
		if err != nil {
			return err
		}
		if link == nil {
			return notFound("trade link", linkID)
		}

		closed, err := s.repo.DeactivateTradeLink(ctx, link.ID, tx)
		if err != nil {
			return err
		}
		if !closed {
			return ErrLinkInactive
		}

		card, err = s.repo.GetCard(ctx, link.CardID, tx)
		return err
	})
	if err != nil {
		return s.fail("deactivate trade link", err)
	}

	if card != nil && card.CollectionID != nil {
		s.refreshCollectionPrice(ctx, *card.CollectionID)
	}
	return nil
}

// RedeemTradeLink hands the listed card to buyer and closes the listing in
// one transaction. A listing whose seller no longer owns the card is treated
// as inactive.
func (s *Service) RedeemTradeLink(ctx context.Context, linkID string, buyerID int64) (*models.Card, error) {
	var card *models.Card
	err := s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		link, err := s.repo.GetTradeLinkByLinkID(ctx, linkID, tx)
		if err != nil {
			return err
		}
		if link == nil {
			return notFound("trade link", linkID)
		}
		if !link.IsActive {
			return ErrLinkInactive
		}

		buyer, err := s.repo.GetUser(ctx, buyerID, tx)
		if err != nil {
			return err
		}
		if buyer == nil {
			return notFound("user", buyerID)
		}

		card, err = s.repo.GetCard(ctx, link.CardID, tx)
		if err != nil {
			return err
		}
		if card == nil {
			return notFound("card", link.CardID)
		}
		if card.OwnerID == buyerID {
			return ErrSelfPurchase
		}
		if card.OwnerID != link.SellerID {
			return ErrLinkInactive
		}

		closed, err := s.repo.DeactivateTradeLink(ctx, link.ID, tx)
		if err != nil {
			return err
		}
		if !closed {
			return ErrLinkInactive
		}

		if err := s.repo.UpdateCardOwner(ctx, card.ID, buyerID, tx); err != nil {
			return err
		}
		card.OwnerID = buyerID
		return nil
	})
	if err != nil {
		return nil, s.fail("redeem trade link", err)
	}

	s.logger.Infof("Card %d transferred to user %d via trade link %s", card.ID, buyerID, linkID)
	if card.CollectionID != nil {
		s.refreshCollectionPrice(ctx, *card.CollectionID)
	}
	return card, nil
}

// CreateCollectionLink lists a whole collection. Only its author can list it.
func (s *Service) CreateCollectionLink(ctx context.Context, collectionID, sellerID int64) (*models.CollectionLink, error) {
	var link *models.CollectionLink
	err := s.insertWithRetry(ctx, "create collection link", func(tx *gorm.DB) error {
		collection, err := s.repo.GetCollection(ctx, collectionID, tx)
		if err != nil {
			return err
		}
		if collection == nil {
			return notFound("collection", collectionID)
		}
		if collection.AuthorID != sellerID {
			return invalid("seller_id", "is not the collection author")
		}

		linkID, err := s.uniqueLinkID(ctx, collectionLinksTable, listingLinkID, tx)
		if err != nil {
			return err
		}

		link = &models.CollectionLink{
			LinkID:       linkID,
			CollectionID: collectionID,
			SellerID:     sellerID,
			IsActive:     true,
		}
		return s.repo.CreateCollectionLink(ctx, link, tx)
	})
	if err != nil {
		return nil, s.fail("create collection link", err)
	}
	return link, nil
}

func (s *Service) FindCollectionLink(ctx context.Context, linkID string) (*models.CollectionLink, error) {
	link, err := s.repo.GetCollectionLinkByLinkID(ctx, linkID, nil)
	if err != nil {
		return nil, s.fail("find collection link", err)
	}
	return link, nil
}

func (s *Service) ListActiveCollectionLinks(ctx context.Context) ([]*models.CollectionLink, error) {
	links, err := s.repo.ListActiveCollectionLinks(ctx, nil)
	if err != nil {
		return nil, s.fail("list active collection links", err)
	}
	return links, nil
}

func (s *Service) DeactivateCollectionLink(ctx context.Context, linkID string) error {
	err := s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		link, err := s.repo.GetCollectionLinkByLinkID(ctx, linkID, tx)
		if err != nil {
			return err
		}
		if link == nil {
			return notFound("collection link", linkID)
		}

		closed, err := s.repo.DeactivateCollectionLink(ctx, link.ID, tx)
		if err != nil {
			return err
		}
		if !closed {
			return ErrLinkInactive
		}
		return nil
	})
	if err != nil {
		return s.fail("deactivate collection link", err)
	}
	return nil
}
