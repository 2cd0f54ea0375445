package service

import (
	"reflect"
	"strings"
	"time"

	"github.com/Fi44er/aura_cards/internal/models"
	"github.com/go-playground/validator/v10"
)

type NewCard struct {
	// Number 0 picks the next free card number.
	Number           int64                 `json:"card_number" validate:"gte=0"`
	Name             string                `json:"name" validate:"required,max=128"`
	OwnerID          int64                 `json:"owner_id" validate:"required,gt=0"`
	RegistrationDate string                `json:"registration_date" validate:"omitempty,regdate"`
	Expires          string                `json:"expires" validate:"omitempty,expiry"`
	EngravingColor   models.EngravingColor `json:"engraving_color" validate:"omitempty,oneof=white bronze gold"`
	HasBackground    bool                  `json:"has_background"`
	StarPrice        *int64                `json:"star_price" validate:"omitempty,gte=0"`
	CollectionID     *int64                `json:"collection_id" validate:"omitempty,gt=0"`
	// AirdropID adds the new card to that airdrop's pool in the same transaction.
	AirdropID *int64 `json:"airdrop_id" validate:"omitempty,gt=0"`
}

type CardUpdate struct {
	Name             *string                `json:"name" validate:"omitempty,min=1,max=128"`
	RegistrationDate *string                `json:"registration_date" validate:"omitempty,regdate"`
	Expires          *string                `json:"expires" validate:"omitempty,expiry"`
	EngravingColor   *models.EngravingColor `json:"engraving_color" validate:"omitempty,oneof=white bronze gold"`
	HasBackground    *bool                  `json:"has_background"`
	StarPrice        *int64                 `json:"star_price" validate:"omitempty,gte=0"`
}

type NewCollection struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
	AuthorID    int64  `json:"author_id" validate:"required,gt=0"`
	StarPrice   *int64 `json:"star_price" validate:"omitempty,gte=0"`
}

type NewTradeLink struct {
	CardID   int64 `json:"card_id" validate:"required,gt=0"`
	SellerID int64 `json:"seller_id" validate:"required,gt=0"`
	Price    int64 `json:"price" validate:"gte=0"`
	IsGift   bool  `json:"is_gift"`
}

type NewAirdrop struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
	CreatorID   int64  `json:"creator_id" validate:"required,gt=0"`
}

type Profile struct {
	Username  *string
	FirstName *string
	IsAdmin   bool
}

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their json names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("regdate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.RegistrationDateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("expiry", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == models.NeverExpires {
			return true
		}
		_, err := time.Parse(models.RegistrationDateLayout, value)
		return err == nil
	})

	return v
}

func (s *Service) check(input interface{}) error {
	if err := s.validate.Struct(input); err != nil {
		return fromValidator(err)
	}
	return nil
}
