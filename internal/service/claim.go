package service

import (
	"context"
	"errors"

	"github.com/Fi44er/aura_cards/internal/models"
	"gorm.io/gorm"
)

// ClaimAirdropCard hands one random unreserved card of the airdrop to the
// claimant and makes them its owner.
//
// The pool row is flipped with a conditional update that only matches while
// the row is unreserved, and the winner is whoever's update changed it. A
// claimant that loses the row to a concurrent claim draws again, up to
// CLAIM_MAX_ATTEMPTS times. Reservation and ownership transfer commit
// together or not at all.
func (s *Service) ClaimAirdropCard(ctx context.Context, airdropID, claimantID int64) (*models.Card, error) {
	var card *models.Card
	err := s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		airdrop, err := s.repo.GetAirdrop(ctx, airdropID, tx)
		if err != nil {
			return err
		}
		if airdrop == nil {
			return notFound("airdrop", airdropID)
		}
		if !airdrop.IsActive {
			return ErrAirdropInactive
		}

		claimant, err := s.repo.GetUser(ctx, claimantID, tx)
		if err != nil {
			return err
		}
		if claimant == nil {
			return notFound("user", claimantID)
		}

		claimed, err := s.repo.HasAirdropClaim(ctx, airdropID, claimantID, tx)
		if err != nil {
			return err
		}
		if claimed {
			return ErrAlreadyClaimed
		}

		card, err = s.reserveOne(ctx, airdropID, claimantID, tx)
		return err
	})
	if err != nil {
		return nil, s.fail("claim airdrop card", err)
	}

	s.logger.Infof("User %d claimed card %d from airdrop %d", claimantID, card.ID, airdropID)
	return card, nil
}

func (s *Service) reserveOne(ctx context.Context, airdropID, claimantID int64, tx *gorm.DB) (*models.Card, error) {
	for attempt := 1; attempt <= s.claimAttempts(); attempt++ {
		row, err := s.repo.PickUnreservedAirdropCard(ctx, airdropID, tx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, ErrNoCardsAvailable
		}

		won, err := s.repo.ReserveAirdropCard(ctx, row.ID, claimantID, s.now(), tx)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// a concurrent claim of the same user won the claimant index
			return nil, ErrAlreadyClaimed
		}
		if err != nil {
			return nil, err
		}
		if !won {
			s.logger.Debugf("airdrop %d: card row %d taken concurrently (attempt %d)", airdropID, row.ID, attempt)
			continue
		}

		if err := s.repo.UpdateCardOwner(ctx, row.CardID, claimantID, tx); err != nil {
			return nil, err
		}

		card, err := s.repo.GetCard(ctx, row.CardID, tx)
		if err != nil {
			return nil, err
		}
		if card == nil {
			return nil, notFound("card", row.CardID)
		}
		return card, nil
	}

	return nil, ErrClaimContention
}
