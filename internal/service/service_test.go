package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Fi44er/aura_cards/config"
	"github.com/Fi44er/aura_cards/db"
	"github.com/Fi44er/aura_cards/internal/models"
	"github.com/Fi44er/aura_cards/internal/repository"
	"github.com/Fi44er/aura_cards/internal/service/mock"
	"github.com/Fi44er/aura_cards/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"
)

type testEnv struct {
	svc  *Service
	repo *repository.Repository
	cfg  *config.Config
}

func newTestEnv(t *testing.T, keys KeyGenerator, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := utils.NopLogger()
	database, err := db.ConnectDb(filepath.Join(t.TempDir(), "cards.db"), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			sqlDB.Close()
		}
	})
	require.NoError(t, db.NewMigrator(database, logger).Apply(context.Background()))

	repo, err := repository.NewRepository(database, logger, cfg.KeyCacheSize)
	require.NoError(t, err)

	if keys == nil {
		keys = utils.NewAccessKeyGenerator()
	}
	return &testEnv{svc: NewService(repo, keys, &cfg, logger), repo: repo, cfg: &cfg}
}

func (e *testEnv) user(t *testing.T, telegramID int64) *models.User {
	t.Helper()
	user, err := e.svc.SyncUser(context.Background(), telegramID, Profile{})
	require.NoError(t, err)
	return user
}

func (e *testEnv) card(t *testing.T, ownerID int64, collectionID *int64) *models.Card {
	t.Helper()
	card, err := e.svc.CreateCard(context.Background(), NewCard{
		Name:         "Card",
		OwnerID:      ownerID,
		CollectionID: collectionID,
	})
	require.NoError(t, err)
	return card
}

func int64Ptr(v int64) *int64 { return &v }

func TestSyncUser(t *testing.T) {
	env := newTestEnv(t, nil, func(c *config.Config) { c.AdminIDs = []int64{900} })
	ctx := context.Background()

	first, err := env.svc.SyncUser(ctx, 100, Profile{Username: optional("neo")})
	require.NoError(t, err)
	assert.False(t, first.IsAdmin)

	again, err := env.svc.SyncUser(ctx, 100, Profile{Username: optional("trinity")})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "trinity", *again.Username)

	admin, err := env.svc.SyncUser(ctx, 900, Profile{})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)

	_, err = env.svc.SyncUser(ctx, 0, Profile{})
	assert.ErrorIs(t, err, ErrValidation)

	byTelegram, err := env.svc.GetUserByTelegramID(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, byTelegram)
	assert.Equal(t, first.ID, byTelegram.ID)

	missing, err := env.svc.GetUser(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSyncTelegramUser(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	user, err := env.svc.SyncTelegramUser(ctx, &tgbotapi.User{ID: 77, UserName: "morpheus"})
	require.NoError(t, err)
	assert.Equal(t, int64(77), user.TelegramID)
	require.NotNil(t, user.Username)
	assert.Equal(t, "morpheus", *user.Username)
	assert.Nil(t, user.FirstName)

	_, err = env.svc.SyncTelegramUser(ctx, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.SyncTelegramUser(ctx, &tgbotapi.User{ID: 78, IsBot: true})
	assert.ErrorIs(t, err, ErrValidation)

	fromButton, err := env.svc.SyncUpdateSender(ctx, tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{From: &tgbotapi.User{ID: 77, FirstName: "Thomas"}},
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, fromButton.ID)
	require.NotNil(t, fromButton.FirstName)
	assert.Equal(t, "Thomas", *fromButton.FirstName)

	nobody, err := env.svc.SyncUpdateSender(ctx, tgbotapi.Update{})
	require.NoError(t, err)
	assert.Nil(t, nobody)
}

func TestCreateCard_Defaults(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	owner := env.user(t, 1)

	first := env.card(t, owner.ID, nil)
	second := env.card(t, owner.ID, nil)

	assert.Equal(t, int64(1), first.CardNumber)
	assert.Equal(t, int64(2), second.CardNumber)
	assert.Equal(t, models.NeverExpires, first.Expires)
	assert.Equal(t, models.EngravingWhite, first.EngravingColor)
	assert.Equal(t, int64(1), first.StarPrice)
	require.NotNil(t, first.AccessKey)
	assert.True(t, utils.IsAccessKey(*first.AccessKey))
	assert.NotEqual(t, *first.AccessKey, *second.AccessKey)

	found, err := env.svc.FindCardByAccessKey(ctx, *second.AccessKey)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, second.ID, found.ID)

	byNumber, err := env.svc.FindCardByNumber(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, byNumber)
	assert.Equal(t, first.ID, byNumber.ID)

	unknown, err := env.svc.FindCardByAccessKey(ctx, "ZZZZ-ZZZZ-ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, unknown)

	_, err = env.svc.FindCardByAccessKey(ctx, "not-a-key")
	assert.ErrorIs(t, err, ErrValidation)

	owned, err := env.svc.ListCardsOwnedBy(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 2)
}

func TestCreateCard_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	owner := env.user(t, 1)

	tests := []struct {
		name  string
		input NewCard
		field string
		want  error
	}{
		{name: "missing name", input: NewCard{OwnerID: owner.ID}, field: "name", want: ErrValidation},
		{name: "missing owner", input: NewCard{Name: "x"}, field: "owner_id", want: ErrValidation},
		{name: "bad color", input: NewCard{Name: "x", OwnerID: owner.ID, EngravingColor: "pink"}, field: "engraving_color", want: ErrValidation},
		{name: "bad registration date", input: NewCard{Name: "x", OwnerID: owner.ID, RegistrationDate: "2024-01-01"}, field: "registration_date", want: ErrValidation},
		{name: "bad expiry", input: NewCard{Name: "x", OwnerID: owner.ID, Expires: "soon"}, field: "expires", want: ErrValidation},
		{name: "unknown owner", input: NewCard{Name: "x", OwnerID: 999}, want: ErrNotFound},
		{name: "unknown collection", input: NewCard{Name: "x", OwnerID: owner.ID, CollectionID: int64Ptr(999)}, want: ErrNotFound},
		{name: "unknown airdrop", input: NewCard{Name: "x", OwnerID: owner.ID, AirdropID: int64Ptr(999)}, want: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreateCard(ctx, tt.input)
			require.ErrorIs(t, err, tt.want)

			if tt.field != "" {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tt.field, verr.Field)
			}
		})
	}

	cards, err := env.svc.ListCardsOwnedBy(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, cards, "failed creates must not leave rows behind")
}

func TestCreateCard_IntoAirdropPool(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	owner := env.user(t, 1)

	airdrop, err := env.svc.CreateAirdrop(ctx, NewAirdrop{Name: "Drop", CreatorID: owner.ID})
	require.NoError(t, err)

	card, err := env.svc.CreateCard(ctx, NewCard{Name: "Pooled", OwnerID: owner.ID, AirdropID: &airdrop.ID})
	require.NoError(t, err)

	available, err := env.svc.ListAvailableAirdropCards(ctx, airdrop.ID)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, card.ID, available[0].ID)
}

// Two creates race while the generator hands both the same key. The loser
// must notice and draw again before anything is stored.
func TestCreateCard_ConcurrentKeyCollision(t *testing.T) {
	ctrl := gomock.NewController(t)
	keys := mock.NewMockKeyGenerator(ctrl)
	keys.EXPECT().Generate().Return("AAAA-AAAA-AAAA", nil).Times(2)
	keys.EXPECT().Generate().Return("BBBB-BBBB-BBBB", nil).Times(1)

	env := newTestEnv(t, keys)
	ctx := context.Background()
	owner := env.user(t, 1)

	var g errgroup.Group
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			_, err := env.svc.CreateCard(ctx, NewCard{Name: fmt.Sprintf("Card %d", i), OwnerID: owner.ID})
			return err
		})
	}
	require.NoError(t, g.Wait())

	cards, err := env.svc.ListCardsOwnedBy(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	var stored []string
	for _, card := range cards {
		require.NotNil(t, card.AccessKey)
		stored = append(stored, *card.AccessKey)
	}
	assert.ElementsMatch(t, []string{"AAAA-AAAA-AAAA", "BBBB-BBBB-BBBB"}, stored)
}

func TestCreateCard_KeyAttemptsExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	keys := mock.NewMockKeyGenerator(ctrl)
	keys.EXPECT().Generate().Return("CCCC-CCCC-CCCC", nil).Times(4)

	env := newTestEnv(t, keys, func(c *config.Config) { c.AccessKeyMaxAttempts = 3 })
	ctx := context.Background()
	owner := env.user(t, 1)

	_, err := env.svc.CreateCard(ctx, NewCard{Name: "First", OwnerID: owner.ID})
	require.NoError(t, err)

	_, err = env.svc.CreateCard(ctx, NewCard{Name: "Second", OwnerID: owner.ID})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateCard_GeneratorFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	keys := mock.NewMockKeyGenerator(ctrl)
	keys.EXPECT().Generate().Return("", errors.New("entropy exhausted at /dev/urandom"))

	env := newTestEnv(t, keys)
	owner := env.user(t, 1)

	_, err := env.svc.CreateCard(context.Background(), NewCard{Name: "Card", OwnerID: owner.ID})
	require.ErrorIs(t, err, ErrStorageFailure)
	assert.NotContains(t, err.Error(), "/dev/urandom")
}

func TestUpdateAndDeleteCard(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	owner := env.user(t, 1)
	buyer := env.user(t, 2)
	card := env.card(t, owner.ID, nil)

	gold := models.EngravingGold
	updated, err := env.svc.UpdateCard(ctx, card.ID, CardUpdate{Name: optional("Gold"), EngravingColor: &gold})
	require.NoError(t, err)
	assert.Equal(t, "Gold", updated.Name)
	assert.Equal(t, owner.ID, updated.OwnerID)

	stored, err := env.svc.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EngravingGold, stored.EngravingColor)
	assert.Equal(t, *card.AccessKey, *stored.AccessKey)

	_, err = env.svc.UpdateCard(ctx, 999, CardUpdate{Name: optional("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	link, err := env.svc.CreateTradeLink(ctx, NewTradeLink{CardID: card.ID, SellerID: owner.ID, Price: 5})
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteCard(ctx, card.ID))
	assert.ErrorIs(t, env.svc.DeleteCard(ctx, card.ID), ErrNotFound)

	gone, err := env.svc.FindCardByAccessKey(ctx, *card.AccessKey)
	require.NoError(t, err)
	assert.Nil(t, gone)

	_, err = env.svc.RedeemTradeLink(ctx, link.LinkID, buyer.ID)
	assert.ErrorIs(t, err, ErrLinkInactive)
}

func TestFail_HidesStorageDetail(t *testing.T) {
	env := newTestEnv(t, nil)

	err := env.svc.fail("load", errors.New("disk I/O error at /var/lib/cards.db"))
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.NotContains(t, err.Error(), "/var/lib")

	assert.Equal(t, ErrNoCardsAvailable, env.svc.fail("claim", ErrNoCardsAvailable))
	wrapped := notFound("card", 3)
	assert.Equal(t, wrapped, env.svc.fail("get", wrapped))
}
