package service

import (
	"context"

	"github.com/Fi44er/aura_cards/internal/models"
)

// SyncUser creates the user on first sight and refreshes the profile on every
// later call. Users listed in ADMIN_IDS are always admins.
func (s *Service) SyncUser(ctx context.Context, telegramID int64, profile Profile) (*models.User, error) {
	if telegramID == 0 {
		return nil, invalid("telegram_id", "is required")
	}

	user := &models.User{
		TelegramID: telegramID,
		Username:   profile.Username,
		FirstName:  profile.FirstName,
		IsAdmin:    profile.IsAdmin || s.config.IsAdmin(telegramID),
	}

	stored, err := s.repo.UpsertUser(ctx, user, nil)
	if err != nil {
		return nil, s.fail("sync user", err)
	}
	return stored, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, id, nil)
	if err != nil {
		return nil, s.fail("get user", err)
	}
	return user, nil
}

func (s *Service) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID, nil)
	if err != nil {
		return nil, s.fail("get user by telegram id", err)
	}
	return user, nil
}
