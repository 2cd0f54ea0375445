package service

import (
	"context"
	"errors"

	"github.com/Fi44er/aura_cards/utils"
	"github.com/rs/xid"
	"gorm.io/gorm"
)

const (
	collectionsTable     = "collections"
	airdropsTable        = "airdrops"
	tradeLinksTable      = "trade_links"
	collectionLinksTable = "collection_links"
)

// errTaken marks a generated identifier that lost to an existing row.
var errTaken = errors.New("identifier taken")

func shareLinkID() string {
	return utils.NewLinkID()
}

// listingLinkID identifies trade and collection listings. xid values sort by
// creation time, which keeps listing ids apart from share link ids.
func listingLinkID() string {
	return xid.New().String()
}

// uniqueLinkID draws ids from gen until one is unused in table.
func (s *Service) uniqueLinkID(ctx context.Context, table string, gen func() string, tx *gorm.DB) (string, error) {
	for attempt := 1; attempt <= s.keyAttempts(); attempt++ {
		id := gen()
		taken, err := s.repo.LinkIDExists(ctx, table, id, tx)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
		s.logger.Warnf("link id collision in %s (attempt %d)", table, attempt)
	}
	return "", ErrConflict
}

// insertWithRetry runs one transaction per attempt until insert stops
// reporting a duplicate. insert returns errTaken or gorm.ErrDuplicatedKey
// for a collision on a generated identifier.
func (s *Service) insertWithRetry(ctx context.Context, what string, insert func(tx *gorm.DB) error) error {
	for attempt := 1; attempt <= s.keyAttempts(); attempt++ {
		err := s.repo.InTransaction(ctx, insert)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errTaken) && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		s.logger.Warnf("%s: generated identifier collided, retrying (attempt %d)", what, attempt)
	}
	return ErrConflict
}
