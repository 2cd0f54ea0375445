package service

//go:generate mockgen -destination=mock/key_generator.go -package=mock github.com/Fi44er/aura_cards/internal/service KeyGenerator

import (
	"context"
	"time"

	"github.com/Fi44er/aura_cards/config"
	"github.com/Fi44er/aura_cards/internal/models"
	"github.com/Fi44er/aura_cards/utils"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

type Service struct {
	repo     Repository
	keys     KeyGenerator
	config   *config.Config
	logger   *utils.Logger
	validate *validator.Validate

	// joins price recomputes of one collection that start together
	prices singleflight.Group

	now func() time.Time
}

type Repository interface {
	InTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	GetUser(ctx context.Context, id int64, tx *gorm.DB) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64, tx *gorm.DB) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User, tx *gorm.DB) (*models.User, error)

	CreateCard(ctx context.Context, card *models.Card, tx *gorm.DB) error
	GetCard(ctx context.Context, id int64, tx *gorm.DB) (*models.Card, error)
	GetCardByNumber(ctx context.Context, number int64, tx *gorm.DB) (*models.Card, error)
	GetCardByAccessKey(ctx context.Context, key string, tx *gorm.DB) (*models.Card, error)
	AccessKeyExists(ctx context.Context, key string, tx *gorm.DB) (bool, error)
	NextCardNumber(ctx context.Context, tx *gorm.DB) (int64, error)
	ListCardsByOwner(ctx context.Context, ownerID int64, tx *gorm.DB) ([]*models.Card, error)
	ListCardsByCollection(ctx context.Context, collectionID int64, tx *gorm.DB) ([]*models.Card, error)
	UpdateCard(ctx context.Context, card *models.Card, tx *gorm.DB) error
	UpdateCardOwner(ctx context.Context, cardID, ownerID int64, tx *gorm.DB) error
	SetCardCollection(ctx context.Context, cardID int64, collectionID *int64, tx *gorm.DB) error
	DeleteCard(ctx context.Context, card *models.Card, tx *gorm.DB) error

	CreateCollection(ctx context.Context, collection *models.Collection, tx *gorm.DB) error
	GetCollection(ctx context.Context, id int64, tx *gorm.DB) (*models.Collection, error)
	LockCollection(ctx context.Context, id int64, tx *gorm.DB) (*models.Collection, error)
	GetCollectionByLinkID(ctx context.Context, linkID string, tx *gorm.DB) (*models.Collection, error)
	GetCollectionByCardAccessKey(ctx context.Context, key string, tx *gorm.DB) (*models.Collection, error)
	ListCollectionsByAuthor(ctx context.Context, authorID int64, tx *gorm.DB) ([]*models.Collection, error)
	ListCollectionSummaries(ctx context.Context, tx *gorm.DB) ([]*models.CollectionSummary, error)
	UpdateCollectionPrice(ctx context.Context, id, price int64, tx *gorm.DB) error
	ListPricedTradeLinks(ctx context.Context, collectionID int64, tx *gorm.DB) ([]*models.TradeLink, error)
	LinkIDExists(ctx context.Context, table, linkID string, tx *gorm.DB) (bool, error)

	CreateTradeLink(ctx context.Context, link *models.TradeLink, tx *gorm.DB) error
	GetTradeLinkByLinkID(ctx context.Context, linkID string, tx *gorm.DB) (*models.TradeLink, error)
	ListActiveTradeLinks(ctx context.Context, tx *gorm.DB) ([]*models.TradeLink, error)
	DeactivateTradeLink(ctx context.Context, id int64, tx *gorm.DB) (bool, error)

	CreateCollectionLink(ctx context.Context, link *models.CollectionLink, tx *gorm.DB) error
	GetCollectionLinkByLinkID(ctx context.Context, linkID string, tx *gorm.DB) (*models.CollectionLink, error)
	ListActiveCollectionLinks(ctx context.Context, tx *gorm.DB) ([]*models.CollectionLink, error)
	DeactivateCollectionLink(ctx context.Context, id int64, tx *gorm.DB) (bool, error)

	CreateAirdrop(ctx context.Context, airdrop *models.Airdrop, tx *gorm.DB) error
	GetAirdrop(ctx context.Context, id int64, tx *gorm.DB) (*models.Airdrop, error)
	GetAirdropByLinkID(ctx context.Context, linkID string, tx *gorm.DB) (*models.Airdrop, error)
	ListActiveAirdrops(ctx context.Context, tx *gorm.DB) ([]*models.Airdrop, error)
	UpdateAirdropMessage(ctx context.Context, id, chatID, messageID int64, tx *gorm.DB) error
	UpdateAirdropCover(ctx context.Context, id int64, cover *string, tx *gorm.DB) error
	DeactivateAirdrop(ctx context.Context, id int64, tx *gorm.DB) (bool, error)
	AddAirdropCard(ctx context.Context, airdropID, cardID int64, tx *gorm.DB) (bool, error)
	GetAirdropStats(ctx context.Context, airdropID int64, tx *gorm.DB) (*models.AirdropStats, error)
	ListAvailableAirdropCards(ctx context.Context, airdropID int64, tx *gorm.DB) ([]*models.Card, error)
	PickUnreservedAirdropCard(ctx context.Context, airdropID int64, tx *gorm.DB) (*models.AirdropCard, error)
	ReserveAirdropCard(ctx context.Context, rowID, claimantID int64, at time.Time, tx *gorm.DB) (bool, error)
	HasAirdropClaim(ctx context.Context, airdropID, claimantID int64, tx *gorm.DB) (bool, error)
}

// KeyGenerator produces card access keys. Uniqueness against the store is
// the service's job.
type KeyGenerator interface {
	Generate() (string, error)
}

func NewService(repo Repository, keys KeyGenerator, cfg *config.Config, logger *utils.Logger) *Service {
	return &Service{
		repo:     repo,
		keys:     keys,
		config:   cfg,
		logger:   logger,
		validate: newValidator(),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *Service) keyAttempts() int {
	if s.config.AccessKeyMaxAttempts > 0 {
		return s.config.AccessKeyMaxAttempts
	}
	return 1
}

func (s *Service) claimAttempts() int {
	if s.config.ClaimMaxAttempts > 0 {
		return s.config.ClaimMaxAttempts
	}
	return 1
}
