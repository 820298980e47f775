package model

import "time"

// Role names permitted to manage WhatsApp contacts.
const (
	RoleAdmin     = "admin"
	RoleBroker    = "broker"
	RoleAttendant = "attendant"
)

// Message direction.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Conversation is one WhatsApp conversation. LeadID is nullable: not
// every conversation is linked to a lead. Phone and WhatsAppID are
// denormalized for diagnostics only.
type Conversation struct {
	ID         string    `json:"id"                gorm:"primaryKey"`
	LeadID     *string   `json:"leadId,omitempty"`
	Phone      string    `json:"phone"`
	WhatsAppID string    `json:"whatsappId"        gorm:"column:whatsapp_id"`
	CreatedAt  time.Time `json:"createdAt"         gorm:"not null"`
	UpdatedAt  time.Time `json:"updatedAt"         gorm:"not null"`
}

func (Conversation) TableName() string { return "whatsapp_conversations" }

// Message belongs to exactly one conversation.
type Message struct {
	ID             string    `json:"id"                 gorm:"primaryKey"`
	ConversationID string    `json:"conversationId"     gorm:"not null;index"`
	Direction      string    `json:"direction"          gorm:"not null"`
	Body           string    `json:"body"`
	SenderID       *string   `json:"senderId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"          gorm:"not null"`
}

func (Message) TableName() string { return "whatsapp_messages" }

// ConversationRead tracks a user's read cursor within one conversation.
type ConversationRead struct {
	ID             string    `json:"id"             gorm:"primaryKey"`
	ConversationID string    `json:"conversationId" gorm:"not null;index:idx_reads_conv_user,unique"`
	UserID         string    `json:"userId"         gorm:"not null;index:idx_reads_conv_user,unique"`
	LastReadAt     time.Time `json:"lastReadAt"     gorm:"not null"`
}

func (ConversationRead) TableName() string { return "whatsapp_conversation_reads" }

// Lead is a CRM contact independently addressable by ID. Conversations
// optionally reference one.
type Lead struct {
	ID        string    `json:"id"        gorm:"primaryKey"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}

func (Lead) TableName() string { return "leads" }

// UserRole is a (subject, role) grant. Read-only to this service.
type UserRole struct {
	UserID    string    `json:"userId"    gorm:"primaryKey"`
	Role      string    `json:"role"      gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}

func (UserRole) TableName() string { return "user_roles" }
