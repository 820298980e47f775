// Package service holds the contact purge pipeline: authorization check,
// target resolution, and the ordered cascade that removes a conversation
// together with its dependent rows.
package service

import (
	"context"
	"fmt"

	registrystore "github.com/brokerdesk/whatsapp-service/internal/registry/store"
	"github.com/brokerdesk/whatsapp-service/internal/security"
	"github.com/charmbracelet/log"
)

// PurgeRequest is the parsed body of a contact deletion request.
// DeleteLead is three-valued: nil means "not specified" and defaults to
// true; only an explicit false suppresses lead deletion.
type PurgeRequest struct {
	ConversationID string `json:"conversation_id"`
	DeleteLead     *bool  `json:"delete_lead"`
}

// PurgeResult reports the exact number of rows removed per table. All four
// counts are always present; zero is a valid outcome (an empty conversation,
// or a concurrent purge that got there first).
type PurgeResult struct {
	MessagesDeleted      int64 `json:"messages_deleted"`
	ReadsDeleted         int64 `json:"reads_deleted"`
	ConversationsDeleted int64 `json:"conversations_deleted"`
	LeadDeleted          int64 `json:"lead_deleted"`
}

// Cascade step names surfaced in DeleteStepError.
const (
	StepMessages     = "messages"
	StepReads        = "reads"
	StepConversation = "conversation"
	StepLead         = "lead"
)

// ContactPurger removes a conversation and its dependent data on behalf of
// an authorized caller. It is stateless and safe for concurrent use.
type ContactPurger struct {
	store          registrystore.ChatStore
	permittedRoles []string
}

// NewContactPurger creates a purger that authorizes callers against the
// given role set. Any single matching role is sufficient.
func NewContactPurger(store registrystore.ChatStore, permittedRoles []string) *ContactPurger {
	return &ContactPurger{store: store, permittedRoles: permittedRoles}
}

// Purge runs the pipeline for one request: validate, authorize, resolve the
// target, then delete messages, read markers, the conversation, and
// optionally the linked lead, in that order.
//
// The four deletes are not wrapped in a transaction. A failure at step N
// returns a DeleteStepError naming the step; steps before N have already
// committed and are not rolled back. That partial-completion window is an
// accepted part of the contract, inherited from the system this service
// replaces.
func (p *ContactPurger) Purge(ctx context.Context, userID string, req PurgeRequest) (*PurgeResult, error) {
	if req.ConversationID == "" {
		return nil, &registrystore.ValidationError{Field: "conversation_id", Message: "is required"}
	}

	// Absent delete_lead means true.
	deleteLead := true
	if req.DeleteLead != nil {
		deleteLead = *req.DeleteLead
	}

	role, err := p.store.FindRole(ctx, userID, p.permittedRoles)
	if err != nil {
		// A failed lookup is a store outage, not an authorization denial.
		return nil, fmt.Errorf("permission check failed: %w", err)
	}
	if role == "" {
		return nil, &registrystore.ForbiddenError{}
	}

	conv, err := p.store.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}

	// Record the intent before any delete is issued, so the audit trail
	// exists even if a later step fails.
	log.Info("Deleting contact",
		"requestedBy", userID,
		"role", role,
		"conversationID", conv.ID,
		"phone", conv.Phone,
		"whatsappID", conv.WhatsAppID,
		"leadID", conv.LeadID,
		"deleteLead", deleteLead,
	)

	var result PurgeResult

	result.MessagesDeleted, err = p.store.DeleteMessages(ctx, conv.ID)
	if err != nil {
		return nil, &registrystore.DeleteStepError{Step: StepMessages, Err: err}
	}
	countRows("whatsapp_messages", result.MessagesDeleted)

	result.ReadsDeleted, err = p.store.DeleteReads(ctx, conv.ID)
	if err != nil {
		return nil, &registrystore.DeleteStepError{Step: StepReads, Err: err}
	}
	countRows("whatsapp_conversation_reads", result.ReadsDeleted)

	result.ConversationsDeleted, err = p.store.DeleteConversation(ctx, conv.ID)
	if err != nil {
		return nil, &registrystore.DeleteStepError{Step: StepConversation, Err: err}
	}
	countRows("whatsapp_conversations", result.ConversationsDeleted)

	if deleteLead && conv.LeadID != nil {
		result.LeadDeleted, err = p.store.DeleteLead(ctx, *conv.LeadID)
		if err != nil {
			return nil, &registrystore.DeleteStepError{Step: StepLead, Err: err}
		}
		countRows("leads", result.LeadDeleted)
	}

	return &result, nil
}

func countRows(table string, n int64) {
	if security.RowsDeletedTotal != nil && n > 0 {
		security.RowsDeletedTotal.WithLabelValues(table).Add(float64(n))
	}
}
