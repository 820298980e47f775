package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brokerdesk/whatsapp-service/internal/model"
	"github.com/brokerdesk/whatsapp-service/internal/plugin/store/gormstore"
	"github.com/brokerdesk/whatsapp-service/internal/plugin/store/sqlite"
	registrystore "github.com/brokerdesk/whatsapp-service/internal/registry/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var permittedRoles = []string{model.RoleAdmin, model.RoleBroker, model.RoleAttendant}

func setupTestStore(t *testing.T) (*gormstore.Store, *gorm.DB) {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return gormstore.New(db), db
}

func TestFindRole(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.UserRole{UserID: "u1", Role: model.RoleBroker}).Error)
	require.NoError(t, db.Create(&model.UserRole{UserID: "u2", Role: "viewer"}).Error)

	role, err := store.FindRole(ctx, "u1", permittedRoles)
	require.NoError(t, err)
	assert.Equal(t, model.RoleBroker, role)

	// A role outside the permitted set does not authorize.
	role, err = store.FindRole(ctx, "u2", permittedRoles)
	require.NoError(t, err)
	assert.Empty(t, role)

	role, err = store.FindRole(ctx, "unknown", permittedRoles)
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestFindRole_MultipleQualifyingRoles(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.UserRole{UserID: "u1", Role: model.RoleAdmin}).Error)
	require.NoError(t, db.Create(&model.UserRole{UserID: "u1", Role: model.RoleAttendant}).Error)

	role, err := store.FindRole(ctx, "u1", permittedRoles)
	require.NoError(t, err)
	assert.NotEmpty(t, role, "holding several qualifying roles still authorizes")
}

func TestCreateAndGetConversation(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, registrystore.CreateConversationRequest{
		Phone:      "+5511999990000",
		WhatsAppID: "5511999990000@c.us",
		LeadName:   "Maria",
		CreateLead: true,
	})
	require.NoError(t, err)
	require.NotNil(t, conv.LeadID)

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, *conv.LeadID, *got.LeadID)

	var notFound *registrystore.NotFoundError
	_, err = store.GetConversation(ctx, "missing")
	require.ErrorAs(t, err, &notFound)
}

func TestAppendAndListMessages(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, registrystore.CreateConversationRequest{Phone: "+551100000000"})
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, conv.ID, registrystore.CreateMessageRequest{Direction: model.DirectionInbound, Body: "oi"})
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, conv.ID, registrystore.CreateMessageRequest{Direction: model.DirectionOutbound, Body: "olá", SenderID: "agent1"})
	require.NoError(t, err)

	msgs, err := store.ListMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "oi", msgs[0].Body)

	var notFound *registrystore.NotFoundError
	_, err = store.AppendMessage(ctx, "missing", registrystore.CreateMessageRequest{Direction: model.DirectionInbound})
	require.ErrorAs(t, err, &notFound)
}

func TestMarkReadUpserts(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, registrystore.CreateConversationRequest{Phone: "+551100000000"})
	require.NoError(t, err)

	first, err := store.MarkRead(ctx, conv.ID, "agent1")
	require.NoError(t, err)
	second, err := store.MarkRead(ctx, conv.ID, "agent1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&model.ConversationRead{}).Where("conversation_id = ?", conv.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count, "marking read twice must not create a second row")
}

func TestCascadeDeleteCounts(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, registrystore.CreateConversationRequest{
		Phone:      "+5511999990000",
		LeadName:   "Maria",
		CreateLead: true,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = store.AppendMessage(ctx, conv.ID, registrystore.CreateMessageRequest{Direction: model.DirectionInbound, Body: "msg"})
		require.NoError(t, err)
	}
	_, err = store.MarkRead(ctx, conv.ID, "agent1")
	require.NoError(t, err)

	msgs, err := store.DeleteMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, msgs)

	reads, err := store.DeleteReads(ctx, conv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reads)

	convs, err := store.DeleteConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, convs)

	leads, err := store.DeleteLead(ctx, *conv.LeadID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, leads)

	// No orphan rows survive the cascade.
	var remaining int64
	require.NoError(t, db.Model(&model.Message{}).Where("conversation_id = ?", conv.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)
	require.NoError(t, db.Model(&model.ConversationRead{}).Where("conversation_id = ?", conv.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)
	require.NoError(t, db.Model(&model.Lead{}).Where("id = ?", *conv.LeadID).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestCascadeDeleteIsZeroOnSecondPass(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, registrystore.CreateConversationRequest{Phone: "+551100000000"})
	require.NoError(t, err)

	n, err := store.DeleteConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// A concurrent purge that lost the race sees zero counts, not an error.
	n, err = store.DeleteMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = store.DeleteConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	var notFound *registrystore.NotFoundError
	_, err = store.GetConversation(ctx, conv.ID)
	require.ErrorAs(t, err, &notFound)
}
