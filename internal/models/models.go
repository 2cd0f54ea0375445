package models

import "time"

type EngravingColor string

const (
	EngravingWhite  EngravingColor = "white"
	EngravingBronze EngravingColor = "bronze"
	EngravingGold   EngravingColor = "gold"
)

// NeverExpires is the expiry marker of cards without an end date.
const NeverExpires = "Never"

// RegistrationDateLayout is the dd.mm.yyyy format of Card.RegistrationDate.
const RegistrationDateLayout = "02.01.2006"

type User struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	TelegramID int64     `gorm:"uniqueIndex;not null" json:"telegram_id"`
	Username   *string   `json:"username"`
	FirstName  *string   `json:"first_name"`
	IsAdmin    bool      `json:"is_admin"`
	CreatedAt  time.Time `json:"created_at"`
}

type Card struct {
	ID               int64          `gorm:"primaryKey" json:"id"`
	CardNumber       int64          `gorm:"not null" json:"card_number"`
	Name             string         `gorm:"not null" json:"name"`
	OwnerID          int64          `gorm:"not null;index" json:"owner_id"`
	RegistrationDate string         `json:"registration_date"`
	Expires          string         `json:"expires"`
	EngravingColor   EngravingColor `json:"engraving_color"`
	HasBackground    bool           `json:"has_background"`
	CollectionID     *int64         `gorm:"index" json:"collection_id"`
	AccessKey        *string        `gorm:"uniqueIndex" json:"access_key"`
	StarPrice        int64          `json:"star_price"`
	CreatedAt        time.Time      `json:"created_at"`
}

type Collection struct {
	ID                int64      `gorm:"primaryKey" json:"id"`
	Name              string     `gorm:"not null" json:"name"`
	Description       string     `json:"description"`
	AuthorID          int64      `gorm:"not null" json:"author_id"`
	StarPrice         int64      `json:"star_price"`
	IsPublished       bool       `json:"is_published"`
	LinkID            string     `gorm:"uniqueIndex;not null" json:"link_id"`
	ReservationStatus string     `json:"reservation_status"`
	ReservedBy        *int64     `json:"reserved_by"`
	ReservedAt        *time.Time `json:"reserved_at"`
	CreatedAt         time.Time  `json:"created_at"`
}

// CollectionSummary is a collection row joined with its card count.
type CollectionSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StarPrice   int64  `json:"star_price"`
	LinkID      string `json:"link_id"`
	CardCount   int64  `json:"card_count"`
}

type TradeLink struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	LinkID    string    `gorm:"uniqueIndex;not null" json:"link_id"`
	CardID    int64     `gorm:"not null;index" json:"card_id"`
	SellerID  int64     `gorm:"not null" json:"seller_id"`
	Price     int64     `gorm:"not null" json:"price"`
	IsGift    bool      `json:"is_gift"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type CollectionLink struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	LinkID       string    `gorm:"uniqueIndex;not null" json:"link_id"`
	CollectionID int64     `gorm:"not null" json:"collection_id"`
	SellerID     int64     `gorm:"not null" json:"seller_id"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Airdrop struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	CreatorID   int64     `gorm:"not null" json:"creator_id"`
	MessageID   *int64    `json:"message_id"`
	ChatID      *int64    `json:"chat_id"`
	IsActive    bool      `json:"is_active"`
	CoverImage  *string   `json:"cover_image"`
	LinkID      string    `gorm:"uniqueIndex" json:"link_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// AirdropCard is pool membership plus claim state of one card in one airdrop.
type AirdropCard struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	AirdropID  int64      `gorm:"not null" json:"airdrop_id"`
	CardID     int64      `gorm:"not null" json:"card_id"`
	IsReserved bool       `json:"is_reserved"`
	ReservedBy *int64     `json:"reserved_by"`
	ReservedAt *time.Time `json:"reserved_at"`
}

type AirdropStats struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
}
