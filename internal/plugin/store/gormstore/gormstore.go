// Package gormstore implements the ChatStore interface on top of GORM.
// The postgres and sqlite plugins wrap it with their respective dialectors.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brokerdesk/whatsapp-service/internal/model"
	registrystore "github.com/brokerdesk/whatsapp-service/internal/registry/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store implements registrystore.ChatStore using a GORM DB handle.
type Store struct {
	db *gorm.DB
}

// New wraps an open GORM handle. The handle's connection pool is shared by
// all requests; Store itself holds no other state.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Roles ---

func (s *Store) FindRole(ctx context.Context, userID string, roles []string) (string, error) {
	var rows []model.UserRole
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND role IN ?", userID, roles).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return "", fmt.Errorf("role lookup failed: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Role, nil
}

// --- Conversations ---

func (s *Store) CreateConversation(ctx context.Context, req registrystore.CreateConversationRequest) (*model.Conversation, error) {
	now := time.Now()
	conv := model.Conversation{
		ID:         uuid.NewString(),
		Phone:      req.Phone,
		WhatsAppID: req.WhatsAppID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if req.CreateLead {
		lead := model.Lead{
			ID:        uuid.NewString(),
			Name:      req.LeadName,
			Phone:     req.Phone,
			CreatedAt: now,
		}
		if err := s.db.WithContext(ctx).Create(&lead).Error; err != nil {
			return nil, fmt.Errorf("failed to create lead: %w", err)
		}
		conv.LeadID = &lead.ID
	}

	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &registrystore.ConflictError{Message: "conversation already exists"}
		}
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &registrystore.NotFoundError{Resource: "conversation", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}
	return &conv, nil
}

func (s *Store) ListConversations(ctx context.Context, limit int) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := s.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// --- Messages ---

func (s *Store) AppendMessage(ctx context.Context, conversationID string, req registrystore.CreateMessageRequest) (*model.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Direction:      req.Direction,
		Body:           req.Body,
		CreatedAt:      time.Now(),
	}
	if req.SenderID != "" {
		sender := req.SenderID
		msg.SenderID = &sender
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", msg.CreatedAt).Error; err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}
	return &msg, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	var msgs []model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// --- Read markers ---

func (s *Store) MarkRead(ctx context.Context, conversationID, userID string) (*model.ConversationRead, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	now := time.Now()
	var read model.ConversationRead
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&read).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		read = model.ConversationRead{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			UserID:         userID,
			LastReadAt:     now,
		}
		if err := s.db.WithContext(ctx).Create(&read).Error; err != nil {
			return nil, fmt.Errorf("failed to create read marker: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to fetch read marker: %w", err)
	default:
		read.LastReadAt = now
		if err := s.db.WithContext(ctx).Model(&read).
			Update("last_read_at", now).Error; err != nil {
			return nil, fmt.Errorf("failed to update read marker: %w", err)
		}
	}
	return &read, nil
}

// --- Purge cascade steps ---
//
// Each step is a single independent DELETE returning the exact affected row
// count. There is intentionally no enclosing transaction: the cascade's
// caller sequences the steps dependents-first, and a failure partway
// through leaves earlier steps committed.

func (s *Store) DeleteMessages(ctx context.Context, conversationID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&model.Message{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Store) DeleteReads(ctx context.Context, conversationID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&model.ConversationRead{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete read markers: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Store) DeleteConversation(ctx context.Context, id string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.Conversation{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete conversation: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Store) DeleteLead(ctx context.Context, id string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.Lead{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete lead: %w", result.Error)
	}
	return result.RowsAffected, nil
}
