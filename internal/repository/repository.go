package repository

import (
	"context"

	"github.com/Fi44er/aura_cards/utils"
	lru "github.com/hashicorp/golang-lru"
	"gorm.io/gorm"
)

const defaultKeyCacheSize = 1024

type Repository struct {
	db     *gorm.DB
	logger *utils.Logger

	// access key -> card id. Keys are immutable once assigned, so entries
	// only go stale when a card is deleted.
	keyCache *lru.Cache
}

func NewRepository(db *gorm.DB, logger *utils.Logger, keyCacheSize int) (*Repository, error) {
	if keyCacheSize <= 0 {
		keyCacheSize = defaultKeyCacheSize
	}

	cache, err := lru.New(keyCacheSize)
	if err != nil {
		return nil, err
	}

	return &Repository{db: db, logger: logger, keyCache: cache}, nil
}

// conn returns tx when the caller runs inside a transaction, the pool otherwise.
func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	db := tx
	if tx == nil {
		db = r.db
	}
	return db.WithContext(ctx)
}
