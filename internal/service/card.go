package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/aura_cards/internal/models"
	"github.com/Fi44er/aura_cards/utils"
	"gorm.io/gorm"
)

const defaultStarPrice int64 = 1

// CreateCard stores a new card with a fresh access key. A key that is already
// stored, or that a concurrent insert takes first, is replaced by a new one
// before anything is committed. Owner, collection and airdrop must exist.
func (s *Service) CreateCard(ctx context.Context, input NewCard) (*models.Card, error) {
	if err := s.check(input); err != nil {
		return nil, err
	}

	var card *models.Card
	err := s.insertWithRetry(ctx, "create card", func(tx *gorm.DB) error {
		key, err := s.keys.Generate()
		if err != nil {
			return err
		}

		taken, err := s.repo.AccessKeyExists(ctx, key, tx)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("access key %s: %w", key, errTaken)
		}

		if err := s.requireCardRefs(ctx, input, tx); err != nil {
			return err
		}

		card = s.buildCard(input, key)
		if card.CardNumber == 0 {
			if card.CardNumber, err = s.repo.NextCardNumber(ctx, tx); err != nil {
				return err
			}
		}

		if err := s.repo.CreateCard(ctx, card, tx); err != nil {
			return err
		}

		if input.AirdropID != nil {
			if _, err := s.repo.AddAirdropCard(ctx, *input.AirdropID, card.ID, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("create card", err)
	}

	s.logger.Infof("Card #%d created for user %d", card.CardNumber, card.OwnerID)
	if card.CollectionID != nil {
		s.refreshCollectionPrice(ctx, *card.CollectionID)
	}
	return card, nil
}

func (s *Service) requireCardRefs(ctx context.Context, input NewCard, tx *gorm.DB) error {
	owner, err := s.repo.GetUser(ctx, input.OwnerID, tx)
	if err != nil {
		return err
	}
	if owner == nil {
		return notFound("user", input.OwnerID)
	}

	if input.CollectionID != nil {
		collection, err := s.repo.GetCollection(ctx, *input.CollectionID, tx)
		if err != nil {
			return err
		}
		if collection == nil {
			return notFound("collection", *input.CollectionID)
		}
	}

	if input.AirdropID != nil {
		airdrop, err := s.repo.GetAirdrop(ctx, *input.AirdropID, tx)
		if err != nil {
			return err
		}
		if airdrop == nil {
			return notFound("airdrop", *input.AirdropID)
		}
	}
	return nil
}

func (s *Service) buildCard(input NewCard, key string) *models.Card {
	card := &models.Card{
		CardNumber:       input.Number,
		Name:             input.Name,
		OwnerID:          input.OwnerID,
		RegistrationDate: input.RegistrationDate,
		Expires:          input.Expires,
		EngravingColor:   input.EngravingColor,
		HasBackground:    input.HasBackground,
		CollectionID:     input.CollectionID,
		AccessKey:        &key,
		StarPrice:        defaultStarPrice,
	}
	if card.RegistrationDate == "" {
		card.RegistrationDate = s.now().Format(models.RegistrationDateLayout)
	}
	if card.Expires == "" {
		card.Expires = models.NeverExpires
	}
	if card.EngravingColor == "" {
		card.EngravingColor = models.EngravingWhite
	}
	if input.StarPrice != nil {
		card.StarPrice = *input.StarPrice
	}
	return card
}

func (s *Service) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	card, err := s.repo.GetCard(ctx, id, nil)
	if err != nil {
		return nil, s.fail("get card", err)
	}
	return card, nil
}

func (s *Service) FindCardByNumber(ctx context.Context, number int64) (*models.Card, error) {
	card, err := s.repo.GetCardByNumber(ctx, number, nil)
	if err != nil {
		return nil, s.fail("find card by number", err)
	}
	return card, nil
}

// FindCardByAccessKey returns nil for unknown keys. Malformed keys are a
// validation error.
func (s *Service) FindCardByAccessKey(ctx context.Context, key string) (*models.Card, error) {
	if !utils.IsAccessKey(key) {
		return nil, invalid("access_key", "must match XXXX-XXXX-XXXX")
	}

	card, err := s.repo.GetCardByAccessKey(ctx, key, nil)
	if err != nil {
		return nil, s.fail("find card by access key", err)
	}
	return card, nil
}

func (s *Service) ListCardsOwnedBy(ctx context.Context, userID int64) ([]*models.Card, error) {
	cards, err := s.repo.ListCardsByOwner(ctx, userID, nil)
	if err != nil {
		return nil, s.fail("list cards owned by user", err)
	}
	return cards, nil
}

func (s *Service) ListCardsInCollection(ctx context.Context, collectionID int64) ([]*models.Card, error) {
	cards, err := s.repo.ListCardsByCollection(ctx, collectionID, nil)
	if err != nil {
		return nil, s.fail("list cards in collection", err)
	}
	return cards, nil
}

// UpdateCard changes display attributes. Ownership, collection membership and
// the access key have their own operations.
func (s *Service) UpdateCard(ctx context.Context, id int64, update CardUpdate) (*models.Card, error) {
	if err := s.check(update); err != nil {
		return nil, err
	}

	var card *models.Card
	err := s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		card, err = s.repo.GetCard(ctx, id, tx)
		if err != nil {
			return err
		}
		if card == nil {
			return notFound("card", id)
		}

		if update.Name != nil {
			card.Name = *update.Name
		}
		if update.RegistrationDate != nil {
			card.RegistrationDate = *update.RegistrationDate
		}
		if update.Expires != nil {
			card.Expires = *update.Expires
		}
		if update.EngravingColor != nil {
			card.EngravingColor = *update.EngravingColor
		}
		if update.HasBackground != nil {
			card.HasBackground = *update.HasBackground
		}
		if update.StarPrice != nil {
			card.StarPrice = *update.StarPrice
		}

		return s.repo.UpdateCard(ctx, card, tx)
	})
	if err != nil {
		return nil, s.fail("update card", err)
	}
	return card, nil
}

// DeleteCard removes a card, its airdrop pool rows and its open trade links.
func (s *Service) DeleteCard(ctx context.Context, id int64) error {
	var collectionID *int64
	err := s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		card, err := s.repo.GetCard(ctx, id, tx)
		if err != nil {
			return err
		}
		if card == nil {
			return notFound("card", id)
		}
		collectionID = card.CollectionID

		err = s.repo.DeleteCard(ctx, card, tx)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("card", id)
		}
		return err
	})
	if err != nil {
		return s.fail("delete card", err)
	}

	s.logger.Infof("Card %d deleted", id)
	if collectionID != nil {
		s.refreshCollectionPrice(ctx, *collectionID)
	}
	return nil
}
