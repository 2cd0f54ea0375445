package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Fi44er/aura_cards/config"
	"github.com/Fi44er/aura_cards/internal/models"
	"github.com/Fi44er/aura_cards/internal/repository"
	"github.com/Fi44er/aura_cards/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// seedAirdrop creates an active airdrop owned by creator with n pooled cards.
func (e *testEnv) seedAirdrop(t *testing.T, creator *models.User, n int) (*models.Airdrop, []*models.Card) {
	t.Helper()
	ctx := context.Background()

	airdrop, err := e.svc.CreateAirdrop(ctx, NewAirdrop{Name: "Drop", CreatorID: creator.ID})
	require.NoError(t, err)

	cards := make([]*models.Card, 0, n)
	for i := 0; i < n; i++ {
		card := e.card(t, creator.ID, nil)
		added, err := e.svc.AddCardToAirdropPool(ctx, airdrop.ID, card.ID)
		require.NoError(t, err)
		require.True(t, added)
		cards = append(cards, card)
	}
	return airdrop, cards
}

func TestClaimAirdropCard_TwoCardsThreeClaimants(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	creator := env.user(t, 1)
	u1, u2, u3 := env.user(t, 11), env.user(t, 12), env.user(t, 13)

	airdrop, cards := env.seedAirdrop(t, creator, 2)
	pool := []int64{cards[0].ID, cards[1].ID}

	first, err := env.svc.ClaimAirdropCard(ctx, airdrop.ID, u1.ID)
	require.NoError(t, err)
	assert.Contains(t, pool, first.ID)
	assert.Equal(t, u1.ID, first.OwnerID)

	second, err := env.svc.ClaimAirdropCard(ctx, airdrop.ID, u2.ID)
	require.NoError(t, err)
	assert.Contains(t, pool, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, u2.ID, second.OwnerID)

	_, err = env.svc.ClaimAirdropCard(ctx, airdrop.ID, u3.ID)
	assert.ErrorIs(t, err, ErrNoCardsAvailable)

	stored, err := env.svc.GetCard(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, u1.ID, stored.OwnerID)

	stats, err := env.svc.GetAirdropStats(ctx, airdrop.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AirdropStats{Total: 2, Available: 0}, *stats)
}

func TestClaimAirdropCard_ConcurrentClaimsNeverExceedPool(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	creator := env.user(t, 1)

	const poolSize, claimants = 5, 20
	airdrop, _ := env.seedAirdrop(t, creator, poolSize)

	users := make([]*models.User, claimants)
	for i := range users {
		users[i] = env.user(t, int64(100+i))
	}

	var (
		mu      sync.Mutex
		winners = map[int64]int64{}
		empty   int32
	)

	var g errgroup.Group
	for _, user := range users {
		user := user
		g.Go(func() error {
			card, err := env.svc.ClaimAirdropCard(ctx, airdrop.ID, user.ID)
			if errors.Is(err, ErrNoCardsAvailable) {
				atomic.AddInt32(&empty, 1)
				return nil
			}
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if _, ok := winners[card.ID]; ok {
				return errors.New("card handed out twice")
			}
			winners[card.ID] = user.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, winners, poolSize)
	assert.Equal(t, int32(claimants-poolSize), atomic.LoadInt32(&empty))

	for cardID, userID := range winners {
		card, err := env.svc.GetCard(ctx, cardID)
		require.NoError(t, err)
		assert.Equal(t, userID, card.OwnerID)
	}

	stats, err := env.svc.GetAirdropStats(ctx, airdrop.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Available)
}

func TestClaimAirdropCard_LastCardTwoClaimants(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	creator := env.user(t, 1)
	alice, bob := env.user(t, 21), env.user(t, 22)

	for round := 0; round < 5; round++ {
		airdrop, cards := env.seedAirdrop(t, creator, 1)

		results := make([]error, 2)
		claimed := make([]*models.Card, 2)

		var g errgroup.Group
		for i, user := range []*models.User{alice, bob} {
			i, user := i, user
			g.Go(func() error {
				claimed[i], results[i] = env.svc.ClaimAirdropCard(ctx, airdrop.ID, user.ID)
				return nil
			})
		}
		require.NoError(t, g.Wait())

		wins := 0
		for i, err := range results {
			if err == nil {
				wins++
				assert.Equal(t, cards[0].ID, claimed[i].ID)
				continue
			}
			assert.ErrorIs(t, err, ErrNoCardsAvailable)
		}
		assert.Equal(t, 1, wins, "round %d", round)

		card, err := env.svc.GetCard(ctx, cards[0].ID)
		require.NoError(t, err)
		assert.Contains(t, []int64{alice.ID, bob.ID}, card.OwnerID)
	}
}

func TestClaimAirdropCard_Outcomes(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	creator := env.user(t, 1)
	claimant := env.user(t, 2)

	active, _ := env.seedAirdrop(t, creator, 2)
	_, err := env.svc.ClaimAirdropCard(ctx, active.ID, claimant.ID)
	require.NoError(t, err)

	inactive, _ := env.seedAirdrop(t, creator, 1)
	require.NoError(t, env.svc.DeactivateAirdrop(ctx, inactive.ID))
	require.NoError(t, env.svc.DeactivateAirdrop(ctx, inactive.ID))

	drained, _ := env.seedAirdrop(t, creator, 0)

	tests := []struct {
		name      string
		airdropID int64
		userID    int64
		want      error
	}{
		{name: "unknown airdrop", airdropID: 999, userID: claimant.ID, want: ErrNotFound},
		{name: "unknown claimant", airdropID: active.ID, userID: 999, want: ErrNotFound},
		{name: "inactive airdrop", airdropID: inactive.ID, userID: claimant.ID, want: ErrAirdropInactive},
		{name: "second claim", airdropID: active.ID, userID: claimant.ID, want: ErrAlreadyClaimed},
		{name: "empty pool", airdropID: drained.ID, userID: claimant.ID, want: ErrNoCardsAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := env.svc.ClaimAirdropCard(ctx, tt.airdropID, tt.userID)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, card)
		})
	}

	stats, err := env.svc.GetAirdropStats(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Available, "rejected claims must not touch the pool")
}

func TestAddCardToAirdropPool_Idempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	creator := env.user(t, 1)
	airdrop, cards := env.seedAirdrop(t, creator, 1)

	added, err := env.svc.AddCardToAirdropPool(ctx, airdrop.ID, cards[0].ID)
	require.NoError(t, err)
	assert.False(t, added)

	_, err = env.svc.AddCardToAirdropPool(ctx, airdrop.ID, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.svc.AddCardToAirdropPool(ctx, 999, cards[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := env.svc.GetAirdropStats(ctx, airdrop.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

// contendedRepository loses the first losses reservations as if another
// claimant had flipped the row first. losses < 0 loses every one.
type contendedRepository struct {
	*repository.Repository
	losses   int
	attempts int
}

func (r *contendedRepository) ReserveAirdropCard(ctx context.Context, rowID, claimantID int64, at time.Time, tx *gorm.DB) (bool, error) {
	r.attempts++
	if r.losses < 0 || r.attempts <= r.losses {
		return false, nil
	}
	return r.Repository.ReserveAirdropCard(ctx, rowID, claimantID, at, tx)
}

func TestClaimAirdropCard_LostRaceDrawsAgain(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	creator := env.user(t, 1)
	claimant := env.user(t, 2)
	airdrop, _ := env.seedAirdrop(t, creator, 3)

	repo := &contendedRepository{Repository: env.repo, losses: 1}
	svc := NewService(repo, utils.NewAccessKeyGenerator(), env.cfg, utils.NopLogger())

	card, err := svc.ClaimAirdropCard(ctx, airdrop.ID, claimant.ID)
	require.NoError(t, err)
	assert.Equal(t, claimant.ID, card.OwnerID)
	assert.Equal(t, 2, repo.attempts)

	stats, err := svc.GetAirdropStats(ctx, airdrop.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AirdropStats{Total: 3, Available: 2}, *stats)
}

func TestClaimAirdropCard_ContentionExhaustsAttempts(t *testing.T) {
	env := newTestEnv(t, nil, func(c *config.Config) { c.ClaimMaxAttempts = 3 })
	ctx := context.Background()
	creator := env.user(t, 1)
	claimant := env.user(t, 2)
	airdrop, cards := env.seedAirdrop(t, creator, 2)

	repo := &contendedRepository{Repository: env.repo, losses: -1}
	svc := NewService(repo, utils.NewAccessKeyGenerator(), env.cfg, utils.NopLogger())

	_, err := svc.ClaimAirdropCard(ctx, airdrop.ID, claimant.ID)
	assert.ErrorIs(t, err, ErrClaimContention)
	assert.Equal(t, 3, repo.attempts)

	stats, err := svc.GetAirdropStats(ctx, airdrop.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AirdropStats{Total: 2, Available: 2}, *stats)

	for _, card := range cards {
		stored, err := svc.GetCard(ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, creator.ID, stored.OwnerID)
	}
}
