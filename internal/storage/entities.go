package storage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Conversation status values. Ongoing state lives only in the session
// store, so this service only ever writes StatusCompleted.
const (
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
)

// User is a durable messaging identity, created lazily on the first
// completed intake.
type User struct {
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	WhatsappID string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}

// Conversation is one completed intake owned by a user, with the full
// transcript frozen at completion time.
type Conversation struct {
	ConversationID      uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID              uuid.UUID      `gorm:"type:uuid;index;not null"`
	Status              string         `gorm:"type:varchar(20);not null;default:'ongoing'"`
	ConversationHistory datatypes.JSON `gorm:"not null"`
	CreatedAt           time.Time      `gorm:"autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime"`

	User User `gorm:"foreignKey:UserID;references:UserID"`
}

func (Conversation) TableName() string { return "conversations" }

func (c *Conversation) BeforeCreate(*gorm.DB) error {
	if c.ConversationID == uuid.Nil {
		c.ConversationID = uuid.New()
	}
	return nil
}

// CollectedData holds the structured fields extracted from a completed
// intake, one record per conversation.
type CollectedData struct {
	DataID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null"`
	UserID         uuid.UUID      `gorm:"type:uuid;index;not null"`
	Data           datatypes.JSON `gorm:"not null"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;references:ConversationID"`
	User         User         `gorm:"foreignKey:UserID;references:UserID"`
}

func (CollectedData) TableName() string { return "collected_data" }

func (d *CollectedData) BeforeCreate(*gorm.DB) error {
	if d.DataID == uuid.Nil {
		d.DataID = uuid.New()
	}
	return nil
}
