package db

import "time"

// Table shapes as each migration step introduced them. They are frozen: a
// later step adds columns through its own struct instead of editing these.

type schemaMigration struct {
	Version   string `gorm:"primaryKey"`
	AppliedAt time.Time
}

func (schemaMigration) TableName() string { return "schema_migrations" }

// 1.0.0

type userV100 struct {
	ID         int64 `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex;not null"`
	Username   *string
	FirstName  *string
	IsAdmin    bool `gorm:"default:false"`
	CreatedAt  time.Time
}

func (userV100) TableName() string { return "users" }

type collectionV100 struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description *string
	AuthorID    int64 `gorm:"not null"`
	StarPrice   int64 `gorm:"default:1"`
	IsPublished bool  `gorm:"default:false"`
	LinkID      *string
	CreatedAt   time.Time
}

func (collectionV100) TableName() string { return "collections" }

type cardV100 struct {
	ID               int64  `gorm:"primaryKey"`
	CardNumber       int64  `gorm:"not null"`
	Name             string `gorm:"not null"`
	OwnerID          int64  `gorm:"not null"`
	RegistrationDate string
	Expires          string `gorm:"default:Never"`
	EngravingColor   string `gorm:"default:white"`
	HasBackground    bool   `gorm:"default:false"`
	CollectionID     *int64
	CreatedAt        time.Time
}

func (cardV100) TableName() string { return "cards" }

type tradeLinkV100 struct {
	ID        int64  `gorm:"primaryKey"`
	LinkID    string `gorm:"uniqueIndex;not null"`
	CardID    int64  `gorm:"not null"`
	SellerID  int64  `gorm:"not null"`
	Price     int64  `gorm:"not null"`
	IsGift    bool   `gorm:"default:false"`
	CreatedAt time.Time
	IsActive  bool `gorm:"default:true"`
}

func (tradeLinkV100) TableName() string { return "trade_links" }

// 1.1.0

type collectionLinkV110 struct {
	ID           int64  `gorm:"primaryKey"`
	LinkID       string `gorm:"uniqueIndex;not null"`
	CollectionID int64  `gorm:"not null"`
	SellerID     int64  `gorm:"not null"`
	CreatedAt    time.Time
	IsActive     bool `gorm:"default:true"`
}

func (collectionLinkV110) TableName() string { return "collection_links" }

type collectionV110 struct {
	Description *string
	IsPublished bool `gorm:"default:false"`
}

func (collectionV110) TableName() string { return "collections" }

// 1.2.0

type cardV120 struct {
	AccessKey *string
}

func (cardV120) TableName() string { return "cards" }

// 1.3.0

type collectionV130 struct {
	ReservationStatus string `gorm:"default:available"`
	ReservedBy        *int64
	ReservedAt        *time.Time
}

func (collectionV130) TableName() string { return "collections" }

// 1.4.0

type collectionV140 struct {
	LinkID *string
}

func (collectionV140) TableName() string { return "collections" }

// 1.5.0

type cardV150 struct {
	StarPrice int64 `gorm:"default:1"`
}

func (cardV150) TableName() string { return "cards" }

// 1.6.0

type airdropV160 struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description *string
	CreatorID   int64 `gorm:"not null"`
	MessageID   *int64
	ChatID      *int64
	IsActive    bool `gorm:"default:true"`
	CreatedAt   time.Time
}

func (airdropV160) TableName() string { return "airdrops" }

type airdropCardV160 struct {
	ID         int64 `gorm:"primaryKey"`
	AirdropID  int64 `gorm:"not null"`
	CardID     int64 `gorm:"not null"`
	IsReserved bool  `gorm:"default:false"`
	ReservedBy *int64
	ReservedAt *time.Time
}

func (airdropCardV160) TableName() string { return "airdrop_cards" }

// 1.7.0

type airdropV170 struct {
	CoverImage *string
}

func (airdropV170) TableName() string { return "airdrops" }

// 1.8.0

type airdropV180 struct {
	LinkID *string
}

func (airdropV180) TableName() string { return "airdrops" }
