package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/avvvet/watssabi-intake/internal/models"
)

// Repository persists completed intakes. A conversation is never created
// without its owning user existing first, and collected data is never
// created without its owning conversation; the database enforces this with
// foreign keys rather than the callers re-validating it.
type Repository interface {
	// GetOrCreateUser returns the durable user for a messaging identity,
	// creating it on first use.
	GetOrCreateUser(ctx context.Context, whatsappID string) (*User, error)

	// CreateConversation records a conversation owned by user with the
	// given status and frozen transcript.
	CreateConversation(ctx context.Context, user *User, status string, history models.History) (*Conversation, error)

	// CreateCollectedData records the structured fields extracted from a
	// completed conversation.
	CreateCollectedData(ctx context.Context, user *User, conv *Conversation, fields map[string]any) (*CollectedData, error)

	// Transact runs fn against a repository bound to a single database
	// transaction, committing when fn returns nil and rolling back
	// otherwise.
	Transact(ctx context.Context, fn func(Repository) error) error
}

// GormRepository implements Repository on GORM/PostgreSQL.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) GetOrCreateUser(ctx context.Context, whatsappID string) (*User, error) {
	if whatsappID == "" {
		return nil, fmt.Errorf("whatsapp id is required")
	}

	var user User
	err := r.db.WithContext(ctx).Where("whatsapp_id = ?", whatsappID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	user = User{WhatsappID: whatsappID}
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

func (r *GormRepository) CreateConversation(ctx context.Context, user *User, status string, history models.History) (*Conversation, error) {
	if user == nil {
		return nil, fmt.Errorf("conversation requires an owning user")
	}

	raw, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("marshal conversation history: %w", err)
	}

	conv := Conversation{
		UserID:              user.UserID,
		Status:              status,
		ConversationHistory: raw,
	}
	if err := r.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &conv, nil
}

func (r *GormRepository) CreateCollectedData(ctx context.Context, user *User, conv *Conversation, fields map[string]any) (*CollectedData, error) {
	if user == nil || conv == nil {
		return nil, fmt.Errorf("collected data requires an owning user and conversation")
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal collected fields: %w", err)
	}

	data := CollectedData{
		ConversationID: conv.ConversationID,
		UserID:         user.UserID,
		Data:           raw,
	}
	if err := r.db.WithContext(ctx).Create(&data).Error; err != nil {
		return nil, fmt.Errorf("create collected data: %w", err)
	}
	return &data, nil
}

func (r *GormRepository) Transact(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}
