package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/brokerdesk/whatsapp-service/internal/model"
	registrystore "github.com/brokerdesk/whatsapp-service/internal/registry/store"
	"github.com/brokerdesk/whatsapp-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var permittedRoles = []string{model.RoleAdmin, model.RoleBroker, model.RoleAttendant}

// fakeStore implements registrystore.ChatStore and records which purge
// steps were issued, in order.
type fakeStore struct {
	roles map[string]string // userID → role
	convs map[string]*model.Conversation

	roleErr         error
	deleteErrs      map[string]error // step name → error
	messagesDeleted int64
	readsDeleted    int64

	calls []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		roles:      map[string]string{},
		convs:      map[string]*model.Conversation{},
		deleteErrs: map[string]error{},
	}
}

func (f *fakeStore) FindRole(_ context.Context, userID string, roles []string) (string, error) {
	f.calls = append(f.calls, "FindRole")
	if f.roleErr != nil {
		return "", f.roleErr
	}
	held := f.roles[userID]
	for _, role := range roles {
		if role == held {
			return role, nil
		}
	}
	return "", nil
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	f.calls = append(f.calls, "GetConversation")
	conv, ok := f.convs[id]
	if !ok {
		return nil, &registrystore.NotFoundError{Resource: "conversation", ID: id}
	}
	return conv, nil
}

func (f *fakeStore) DeleteMessages(_ context.Context, _ string) (int64, error) {
	f.calls = append(f.calls, "DeleteMessages")
	if err := f.deleteErrs["messages"]; err != nil {
		return 0, err
	}
	return f.messagesDeleted, nil
}

func (f *fakeStore) DeleteReads(_ context.Context, _ string) (int64, error) {
	f.calls = append(f.calls, "DeleteReads")
	if err := f.deleteErrs["reads"]; err != nil {
		return 0, err
	}
	return f.readsDeleted, nil
}

func (f *fakeStore) DeleteConversation(_ context.Context, id string) (int64, error) {
	f.calls = append(f.calls, "DeleteConversation")
	if err := f.deleteErrs["conversation"]; err != nil {
		return 0, err
	}
	if _, ok := f.convs[id]; !ok {
		return 0, nil
	}
	delete(f.convs, id)
	return 1, nil
}

func (f *fakeStore) DeleteLead(_ context.Context, _ string) (int64, error) {
	f.calls = append(f.calls, "DeleteLead")
	if err := f.deleteErrs["lead"]; err != nil {
		return 0, err
	}
	return 1, nil
}

func (f *fakeStore) CreateConversation(_ context.Context, _ registrystore.CreateConversationRequest) (*model.Conversation, error) {
	panic("not used")
}

func (f *fakeStore) ListConversations(_ context.Context, _ int) ([]model.Conversation, error) {
	panic("not used")
}

func (f *fakeStore) AppendMessage(_ context.Context, _ string, _ registrystore.CreateMessageRequest) (*model.Message, error) {
	panic("not used")
}

func (f *fakeStore) ListMessages(_ context.Context, _ string, _ int) ([]model.Message, error) {
	panic("not used")
}

func (f *fakeStore) MarkRead(_ context.Context, _, _ string) (*model.ConversationRead, error) {
	panic("not used")
}

func seedConversation(f *fakeStore, id string, leadID *string) {
	f.convs[id] = &model.Conversation{ID: id, LeadID: leadID, Phone: "+5511999990000", WhatsAppID: "5511999990000@c.us"}
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestPurge_MissingConversationID(t *testing.T) {
	store := newFakeStore()
	purger := service.NewContactPurger(store, permittedRoles)

	_, err := purger.Purge(context.Background(), "user1", service.PurgeRequest{})

	var validation *registrystore.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "conversation_id", validation.Field)
	assert.Empty(t, store.calls, "no store call may happen before validation")
}

func TestPurge_RoleLookupErrorIsNotForbidden(t *testing.T) {
	store := newFakeStore()
	store.roleErr = errors.New("connection refused")
	seedConversation(store, "c1", nil)
	purger := service.NewContactPurger(store, permittedRoles)

	_, err := purger.Purge(context.Background(), "user1", service.PurgeRequest{ConversationID: "c1"})

	require.Error(t, err)
	var forbidden *registrystore.ForbiddenError
	assert.False(t, errors.As(err, &forbidden), "store outage must not be reported as a denial")
}

func TestPurge_NoRoleIsForbidden(t *testing.T) {
	store := newFakeStore()
	seedConversation(store, "c1", nil)
	purger := service.NewContactPurger(store, permittedRoles)

	_, err := purger.Purge(context.Background(), "nobody", service.PurgeRequest{ConversationID: "c1"})

	var forbidden *registrystore.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.NotContains(t, store.calls, "GetConversation")
}

func TestPurge_AnySingleRoleAuthorizes(t *testing.T) {
	for _, role := range permittedRoles {
		t.Run(role, func(t *testing.T) {
			store := newFakeStore()
			store.roles["user1"] = role
			seedConversation(store, "c1", nil)
			purger := service.NewContactPurger(store, permittedRoles)

			result, err := purger.Purge(context.Background(), "user1", service.PurgeRequest{ConversationID: "c1"})
			require.NoError(t, err)
			assert.EqualValues(t, 1, result.ConversationsDeleted)
		})
	}
}

func TestPurge_UnknownConversation(t *testing.T) {
	store := newFakeStore()
	store.roles["user1"] = model.RoleAdmin
	purger := service.NewContactPurger(store, permittedRoles)

	_, err := purger.Purge(context.Background(), "user1", service.PurgeRequest{ConversationID: "missing"})

	var notFound *registrystore.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.NotContains(t, store.calls, "DeleteMessages")
}

func TestPurge_FullCascadeWithLead(t *testing.T) {
	store := newFakeStore()
	store.roles["user1"] = model.RoleAdmin
	store.messagesDeleted = 3
	store.readsDeleted = 1
	seedConversation(store, "c1", strPtr("lead9"))
	purger := service.NewContactPurger(store, permittedRoles)

	result, err := purger.Purge(context.Background(), "user1", service.PurgeRequest{ConversationID: "c1"})
	require.NoError(t, err)

	assert.EqualValues(t, 3, result.MessagesDeleted)
	assert.EqualValues(t, 1, result.ReadsDeleted)
	assert.EqualValues(t, 1, result.ConversationsDeleted)
	assert.EqualValues(t, 1, result.LeadDeleted)

	// Dependents strictly before the parent, lead last.
	assert.Equal(t, []string{"FindRole", "GetConversation", "DeleteMessages", "DeleteReads", "DeleteConversation", "DeleteLead"}, store.calls)
}

func TestPurge_EmptyConversationReportsZeroCounts(t *testing.T) {
	store := newFakeStore()
	store.roles["user1"] = model.RoleBroker
	seedConversation(store, "c1", nil)
	purger := service.NewContactPurger(store, permittedRoles)

	result, err := purger.Purge(context.Background(), "user1", service.PurgeRequest{ConversationID: "c1"})
	require.NoError(t, err)

	assert.EqualValues(t, 0, result.MessagesDeleted)
	assert.EqualValues(t, 0, result.ReadsDeleted)
	assert.EqualValues(t, 1, result.ConversationsDeleted)
	assert.EqualValues(t, 0, result.LeadDeleted)
}

func TestPurge_DeleteLeadFalseKeepsLead(t *testing.T) {
	store := newFakeStore()
	store.roles["user1"] = model.RoleAdmin
	seedConversation(store, "c1", strPtr("lead9"))
	purger := service.NewContactPurger(store, permittedRoles)

	result, err := purger.Purge(context.Background(), "user1", service.PurgeRequest{
		ConversationID: "c1",
		DeleteLead:     boolPtr(false),
	})
	require.NoError(t, err)

	assert.EqualValues(t, 0, result.LeadDeleted)
	assert.NotContains(t, store.calls, "DeleteLead")
}

func TestPurge_DeleteLeadOmittedDefaultsTrue(t *testing.T) {
	store := newFakeStore()
	store.roles["user1"] = model.RoleAdmin
	seedConversation(store, "c1", strPtr("lead9"))
	purger := service.NewContactPurger(store, permittedRoles)

	result, err := purger.Purge(context.Background(), "user1", service.PurgeRequest{ConversationID: "c1"})
	require.NoError(t, err)

	assert.EqualValues(t, 1, result.LeadDeleted)
	assert.Contains(t, store.calls, "DeleteLead")
}

func TestPurge_NoLinkedLeadIsNotAnError(t *testing.T) {
	store := newFakeStore()
	store.roles["user1"] = model.RoleAttendant
	seedConversation(store, "c1", nil)
	purger := service.NewContactPurger(store, permittedRoles)

	result, err := purger.Purge(context.Background(), "user1", service.PurgeRequest{
		ConversationID: "c1",
		DeleteLead:     boolPtr(true),
	})
	require.NoError(t, err)

	assert.EqualValues(t, 0, result.LeadDeleted)
	assert.NotContains(t, store.calls, "DeleteLead")
}

func TestPurge_MidCascadeFailureNamesStepAndStops(t *testing.T) {
	store := newFakeStore()
	store.roles["user1"] = model.RoleAdmin
	store.deleteErrs["conversation"] = errors.New("disk on fire")
	seedConversation(store, "c1", strPtr("lead9"))
	purger := service.NewContactPurger(store, permittedRoles)

	_, err := purger.Purge(context.Background(), "user1", service.PurgeRequest{ConversationID: "c1"})

	var step *registrystore.DeleteStepError
	require.ErrorAs(t, err, &step)
	assert.Equal(t, service.StepConversation, step.Step)

	// Earlier steps were issued and are not rolled back; the lead step never runs.
	assert.Contains(t, store.calls, "DeleteMessages")
	assert.Contains(t, store.calls, "DeleteReads")
	assert.NotContains(t, store.calls, "DeleteLead")
}

func TestPurge_RepeatYieldsNotFound(t *testing.T) {
	store := newFakeStore()
	store.roles["user1"] = model.RoleAdmin
	seedConversation(store, "c1", nil)
	purger := service.NewContactPurger(store, permittedRoles)

	_, err := purger.Purge(context.Background(), "user1", service.PurgeRequest{ConversationID: "c1"})
	require.NoError(t, err)

	_, err = purger.Purge(context.Background(), "user1", service.PurgeRequest{ConversationID: "c1"})
	var notFound *registrystore.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
