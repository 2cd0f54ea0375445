package service

import (
	"context"
	"errors"

	"github.com/Fi44er/aura_cards/internal/models"
	"github.com/Fi44er/aura_cards/utils"
	"gorm.io/gorm"
)

func (s *Service) CreateAirdrop(ctx context.Context, input NewAirdrop) (*models.Airdrop, error) {
	if err := s.check(input); err != nil {
		return nil, err
	}

	var airdrop *models.Airdrop
	err := s.insertWithRetry(ctx, "create airdrop", func(tx *gorm.DB) error {
		creator, err := s.repo.GetUser(ctx, input.CreatorID, tx)
		if err != nil {
			return err
		}
		if creator == nil {
			return notFound("user", input.CreatorID)
		}

		linkID, err := s.uniqueLinkID(ctx, airdropsTable, shareLinkID, tx)
		if err != nil {
			return err
		}

		airdrop = &models.Airdrop{
			Name:        input.Name,
			Description: input.Description,
			CreatorID:   input.CreatorID,
			IsActive:    true,
			LinkID:      linkID,
		}
		return s.repo.CreateAirdrop(ctx, airdrop, tx)
	})
	if err != nil {
		return nil, s.fail("create airdrop", err)
	}

	s.logger.Infof("Airdrop %q created by user %d", airdrop.Name, airdrop.CreatorID)
	return airdrop, nil
}

func (s *Service) GetAirdrop(ctx context.Context, id int64) (*models.Airdrop, error) {
	airdrop, err := s.repo.GetAirdrop(ctx, id, nil)
	if err != nil {
		return nil, s.fail("get airdrop", err)
	}
	return airdrop, nil
}

func (s *Service) FindAirdropByLinkID(ctx context.Context, linkID string) (*models.Airdrop, error) {
	if !utils.IsLinkID(linkID) {
		return nil, invalid("link_id", "must be 16 lowercase hex characters")
	}

	airdrop, err := s.repo.GetAirdropByLinkID(ctx, linkID, nil)
	if err != nil {
		return nil, s.fail("find airdrop by link id", err)
	}
	return airdrop, nil
}

func (s *Service) ListActiveAirdrops(ctx context.Context) ([]*models.Airdrop, error) {
	airdrops, err := s.repo.ListActiveAirdrops(ctx, nil)
	if err != nil {
		return nil, s.fail("list active airdrops", err)
	}
	return airdrops, nil
}

// AddCardToAirdropPool makes a card claimable in an airdrop. It reports false
// when the card is already in the pool.
func (s *Service) AddCardToAirdropPool(ctx context.Context, airdropID, cardID int64) (bool, error) {
	var added bool
	err := s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		airdrop, err := s.repo.GetAirdrop(ctx, airdropID, tx)
		if err != nil {
			return err
		}
		if airdrop == nil {
			return notFound("airdrop", airdropID)
		}

		card, err := s.repo.GetCard(ctx, cardID, tx)
		if err != nil {
			return err
		}
		if card == nil {
			return notFound("card", cardID)
		}

		added, err = s.repo.AddAirdropCard(ctx, airdropID, cardID, tx)
		return err
	})
	if err != nil {
		return false, s.fail("add card to airdrop pool", err)
	}
	return added, nil
}

func (s *Service) GetAirdropStats(ctx context.Context, airdropID int64) (*models.AirdropStats, error) {
	airdrop, err := s.repo.GetAirdrop(ctx, airdropID, nil)
	if err != nil {
		return nil, s.fail("get airdrop stats", err)
	}
	if airdrop == nil {
		return nil, notFound("airdrop", airdropID)
	}

	stats, err := s.repo.GetAirdropStats(ctx, airdropID, nil)
	if err != nil {
		return nil, s.fail("get airdrop stats", err)
	}
	return stats, nil
}

func (s *Service) ListAvailableAirdropCards(ctx context.Context, airdropID int64) ([]*models.Card, error) {
	cards, err := s.repo.ListAvailableAirdropCards(ctx, airdropID, nil)
	if err != nil {
		return nil, s.fail("list available airdrop cards", err)
	}
	return cards, nil
}

// SetAirdropMessage records the chat message that displays the airdrop.
func (s *Service) SetAirdropMessage(ctx context.Context, airdropID, chatID, messageID int64) error {
	err := s.repo.UpdateAirdropMessage(ctx, airdropID, chatID, messageID, nil)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("airdrop", airdropID)
	}
	if err != nil {
		return s.fail("set airdrop message", err)
	}
	return nil
}

// SetAirdropCover stores the cover image reference. An empty cover clears it.
func (s *Service) SetAirdropCover(ctx context.Context, airdropID int64, cover string) error {
	var value *string
	if cover != "" {
		value = &cover
	}

	err := s.repo.UpdateAirdropCover(ctx, airdropID, value, nil)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("airdrop", airdropID)
	}
	if err != nil {
		return s.fail("set airdrop cover", err)
	}
	return nil
}

// DeactivateAirdrop stops further claims. Deactivating twice is a no-op.
func (s *Service) DeactivateAirdrop(ctx context.Context, airdropID int64) error {
	err := s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		airdrop, err := s.repo.GetAirdrop(ctx, airdropID, tx)
		if err != nil {
			return err
		}
		if airdrop == nil {
			return notFound("airdrop", airdropID)
		}

		_, err = s.repo.DeactivateAirdrop(ctx, airdropID, tx)
		return err
	})
	if err != nil {
		return s.fail("deactivate airdrop", err)
	}

	s.logger.Infof("Airdrop %d deactivated", airdropID)
	return nil
}
