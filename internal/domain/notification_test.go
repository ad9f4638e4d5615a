package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{"jane@x.com", "jane.doe+queue@church.org.uk"}
	for _, e := range valid {
		assert.NoError(t, ValidateEmail(e), e)
	}
	invalid := []string{"", "jane", "jane@", "@x.com", "jane@localhost", "Jane <jane@x.com>", "jane doe@x.com"}
	for _, e := range invalid {
		assert.True(t, IsValidation(ValidateEmail(e)), e)
	}
}

func TestNotificationConstructors(t *testing.T) {
	to := Recipient{Email: "jane@x.com", FirstName: "Jane", LastName: "Doe"}

	approval, err := NewApprovalNotice(to, 2)
	require.NoError(t, err)
	assert.Equal(t, NotificationApproval, approval.Type())
	assert.Equal(t, 2, approval.QueuePosition())
	assert.Equal(t, to, approval.To())

	decline, err := NewDeclineNotice(to, "  no slots  ")
	require.NoError(t, err)
	assert.Equal(t, "no slots", decline.Reason())
	assert.Zero(t, decline.QueuePosition())

	update, err := NewPositionUpdateNotice(to, 1)
	require.NoError(t, err)
	assert.Equal(t, NotificationPositionUpdate, update.Type())

	turn, err := NewYourTurnNotice(to)
	require.NoError(t, err)
	assert.Equal(t, NotificationYourTurn, turn.Type())
	assert.Empty(t, turn.Reason())

	_, err = NewDeclineNotice(to, "")
	assert.True(t, IsValidation(err))
	_, err = NewPositionUpdateNotice(to, 0)
	assert.True(t, IsValidation(err))
	_, err = NewApprovalNotice(Recipient{Email: "jane@x.com"}, 1)
	assert.True(t, IsValidation(err))
	_, err = NewYourTurnNotice(Recipient{Email: "bad", FirstName: "Jane"})
	assert.True(t, IsValidation(err))
}

func TestRecipientOf(t *testing.T) {
	e := &QueueEntry{ID: "e1", Email: "jane@x.com", FirstName: "Jane", LastName: "Doe"}
	assert.Equal(t, Recipient{EntryID: "e1", Email: "jane@x.com", FirstName: "Jane", LastName: "Doe"}, RecipientOf(e))
}

func TestNewNotificationRecord(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n, err := NewApprovalNotice(Recipient{EntryID: "e1", Email: "jane@x.com", FirstName: "Jane"}, 2)
	require.NoError(t, err)

	rec := NewNotificationRecord(n, DispatchResult{Status: DeliveryDeferred, Reason: "provider outage"}, at)
	assert.Equal(t, &NotificationRecord{
		EntryID:       "e1",
		Type:          NotificationApproval,
		Email:         "jane@x.com",
		QueuePosition: 2,
		Status:        DeliveryDeferred,
		Reason:        "provider outage",
		CreatedAt:     at,
	}, rec)
}
