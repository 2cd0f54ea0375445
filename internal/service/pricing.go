package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Fi44er/aura_cards/internal/models"
	"gorm.io/gorm"
)

// RecomputeCollectionPrice sets a collection's price to the sum, over its
// cards, of each card's latest active non-gift trade link price, and stores
// it. Cards without such a link add nothing. With collections disabled the
// price is 0.
//
// A call may share its computation with concurrent calls for the same
// collection, but never with one that began before it, so every change
// committed before the call is counted.
func (s *Service) RecomputeCollectionPrice(ctx context.Context, collectionID int64) (int64, error) {
	key := strconv.FormatInt(collectionID, 10)

	s.prices.Forget(key)
	ch := s.prices.DoChan(key, func() (interface{}, error) {
		// shared by every joined caller, so no single caller may cancel it
		return s.recomputeCollectionPrice(context.WithoutCancel(ctx), collectionID)
	})

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("recompute collection price: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return 0, s.fail("recompute collection price", res.Err)
		}
		if res.Shared {
			s.logger.Debugf("price of collection %d shared with a concurrent recompute", collectionID)
		}
		return res.Val.(int64), nil
	}
}

func (s *Service) recomputeCollectionPrice(ctx context.Context, collectionID int64) (int64, error) {
	var price int64
	err := s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		collection, err := s.repo.LockCollection(ctx, collectionID, tx)
		if err != nil {
			return err
		}
		if collection == nil {
			return notFound("collection", collectionID)
		}

		if s.config.EnableCollections {
			links, err := s.repo.ListPricedTradeLinks(ctx, collectionID, tx)
			if err != nil {
				return err
			}
			price = sumLatestPrices(links)
		}

		return s.repo.UpdateCollectionPrice(ctx, collectionID, price, tx)
	})
	if err != nil {
		return 0, err
	}
	return price, nil
}

// sumLatestPrices expects links newest first and counts only the first link
// seen for each card.
func sumLatestPrices(links []*models.TradeLink) int64 {
	seen := make(map[int64]struct{}, len(links))
	var total int64
	for _, link := range links {
		if _, ok := seen[link.CardID]; ok {
			continue
		}
		seen[link.CardID] = struct{}{}
		total += link.Price
	}
	return total
}

// refreshCollectionPrice recomputes after a change that may move the price.
// The change itself is already committed, so a failure is only logged.
func (s *Service) refreshCollectionPrice(ctx context.Context, collectionID int64) {
	if _, err := s.RecomputeCollectionPrice(ctx, collectionID); err != nil {
		s.logger.Warnf("failed to refresh price of collection %d: %v", collectionID, err)
	}
}
