package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/brokerdesk/whatsapp-service/internal/model"
)

// CreateConversationRequest carries the fields for a new conversation.
// Lead is optional: when set, a lead row is created and linked.
type CreateConversationRequest struct {
	Phone      string
	WhatsAppID string
	LeadName   string
	CreateLead bool
}

// CreateMessageRequest carries the fields for a new message.
type CreateMessageRequest struct {
	Direction string
	Body      string
	SenderID  string
}

// ChatStore is the persistence interface for conversations, messages,
// read markers, leads and role assignments.
//
// The four Delete* methods are the individual steps of the contact purge
// cascade. They are deliberately independent operations, not one
// transactional unit: callers sequence them and report exact per-step
// row counts, and a failure partway through leaves earlier steps
// committed.
type ChatStore interface {
	// FindRole returns the first role held by userID among the given
	// roles, or "" when none match. A store failure is returned as an
	// error and must be distinguished from the no-match case.
	FindRole(ctx context.Context, userID string, roles []string) (string, error)

	CreateConversation(ctx context.Context, req CreateConversationRequest) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]model.Conversation, error)

	AppendMessage(ctx context.Context, conversationID string, req CreateMessageRequest) (*model.Message, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)

	MarkRead(ctx context.Context, conversationID, userID string) (*model.ConversationRead, error)

	DeleteMessages(ctx context.Context, conversationID string) (int64, error)
	DeleteReads(ctx context.Context, conversationID string) (int64, error)
	DeleteConversation(ctx context.Context, id string) (int64, error)
	DeleteLead(ctx context.Context, id string) (int64, error)
}

// Loader initializes a ChatStore from the context (which carries the Config).
type Loader func(ctx context.Context) (ChatStore, error)

// Plugin represents a store backend.
type Plugin struct {
	Name   string
	Loader Loader
}

var (
	mu      sync.Mutex
	plugins = map[string]Plugin{}
)

// Register adds a store plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	mu.Lock()
	defer mu.Unlock()
	plugins[p.Name] = p
}

// Select returns the loader for the named store backend.
func Select(name string) (Loader, error) {
	mu.Lock()
	defer mu.Unlock()
	p, ok := plugins[name]
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q (available: %v)", name, namesLocked())
	}
	return p.Loader, nil
}

// Names returns the registered backend names, sorted.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(plugins))
	for name := range plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
