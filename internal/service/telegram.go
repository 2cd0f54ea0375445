package service

import (
	"context"

	"github.com/Fi44er/aura_cards/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SyncTelegramUser is SyncUser for a user as the bot API reports them.
func (s *Service) SyncTelegramUser(ctx context.Context, from *tgbotapi.User) (*models.User, error) {
	if from == nil {
		return nil, invalid("user", "is required")
	}
	if from.IsBot {
		return nil, invalid("user", "bots cannot own cards")
	}

	return s.SyncUser(ctx, from.ID, Profile{
		Username:  optional(from.UserName),
		FirstName: optional(from.FirstName),
	})
}

// SyncUpdateSender syncs whoever sent a message or pressed a button. Updates
// without a sender, such as channel posts, return nil.
func (s *Service) SyncUpdateSender(ctx context.Context, update tgbotapi.Update) (*models.User, error) {
	from := update.SentFrom()
	if from == nil {
		return nil, nil
	}
	return s.SyncTelegramUser(ctx, from)
}

// BindAirdropMessage remembers the message announcing the airdrop so it can be
// edited as the pool drains.
func (s *Service) BindAirdropMessage(ctx context.Context, airdropID int64, msg *tgbotapi.Message) error {
	if msg == nil || msg.Chat == nil {
		return invalid("message", "is required")
	}
	return s.SetAirdropMessage(ctx, airdropID, msg.Chat.ID, int64(msg.MessageID))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
