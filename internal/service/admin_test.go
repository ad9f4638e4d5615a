package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consultation-queue-backend/internal/domain"
)

func newAdminFixture(t *testing.T) (*monitorFixture, AdminService) {
	t.Helper()
	f := newMonitorFixture(3)
	return f, NewAdminService(f.queue, f.monitor, f.dispatcher)
}

func TestAdminService_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("AssignsApprovedRankAndNotifiesTop", func(t *testing.T) {
		f, admin := newAdminFixture(t)
		f.approveN(t, domain.QueueTypePastor, 2)
		e := submit(t, f.queue, "Tess", domain.QueueTypePastor)

		approved, err := admin.Approve(ctx, e.ID, "see after service", 0)
		require.NoError(t, err)
		f.monitor.pending.Wait()
		f.queue.pending.Wait()

		assert.Equal(t, domain.QueueStatusApproved, approved.Status)
		assert.Equal(t, 3, approved.Position)
		assert.Equal(t, "see after service", approved.AdminNotes)
		assert.Len(t, f.dispatcher.ofType(domain.NotificationPositionUpdate), 3)
	})

	t.Run("DesiredPositionIsRecordedInNotes", func(t *testing.T) {
		f, admin := newAdminFixture(t)
		a := submit(t, f.queue, "Ann", domain.QueueTypeOverseer)
		b := submit(t, f.queue, "Bob", domain.QueueTypeOverseer)

		withNotes, err := admin.Approve(ctx, a.ID, "urgent", 2)
		require.NoError(t, err)
		assert.Equal(t, "urgent (requested position 2)", withNotes.AdminNotes)
		assert.Equal(t, 1, withNotes.Position)

		bare, err := admin.Approve(ctx, b.ID, "", 1)
		require.NoError(t, err)
		assert.Equal(t, "requested position 1", bare.AdminNotes)
		assert.Equal(t, 2, bare.Position)

		f.monitor.pending.Wait()
		f.queue.pending.Wait()
	})

	t.Run("NegativePosition", func(t *testing.T) {
		f, admin := newAdminFixture(t)
		e := submit(t, f.queue, "Ann", domain.QueueTypeOverseer)
		_, err := admin.Approve(ctx, e.ID, "", -1)
		assert.True(t, domain.IsValidation(err))

		got, err := f.queue.GetQueueEntry(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.QueueStatusWaiting, got.Status)
	})

	t.Run("AlreadyDeclined", func(t *testing.T) {
		f, admin := newAdminFixture(t)
		e := submit(t, f.queue, "Ann", domain.QueueTypeOverseer)
		_, err := admin.Decline(ctx, e.ID, "duplicate request")
		require.NoError(t, err)

		_, err = admin.Approve(ctx, e.ID, "", 0)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		f.queue.pending.Wait()
	})
}

func TestAdminService_Resend(t *testing.T) {
	ctx := context.Background()
	f, admin := newAdminFixture(t)
	a := submit(t, f.queue, "Ann", domain.QueueTypePastor)
	b := submit(t, f.queue, "Bob", domain.QueueTypePastor)
	c := submit(t, f.queue, "Cy", domain.QueueTypePastor)
	_, err := f.queue.ApproveQueueEntry(ctx, a.ID, "")
	require.NoError(t, err)
	_, err = f.queue.DeclineQueueEntry(ctx, b.ID, "out of office")
	require.NoError(t, err)
	f.queue.pending.Wait()

	res, err := admin.Resend(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, res.Delivered())
	approvals := f.dispatcher.ofType(domain.NotificationApproval)
	require.Len(t, approvals, 1)
	assert.Equal(t, 1, approvals[0].QueuePosition())

	_, err = admin.Resend(ctx, b.ID)
	require.NoError(t, err)
	declines := f.dispatcher.ofType(domain.NotificationDecline)
	require.Len(t, declines, 1)
	assert.Equal(t, "out of office", declines[0].Reason())

	_, err = admin.Resend(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = admin.Resend(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdminService_UpdatePosition(t *testing.T) {
	ctx := context.Background()
	f, admin := newAdminFixture(t)
	approved := f.approveN(t, domain.QueueTypeOverseer, 3)
	f.repo.setPosition(approved[1].ID, 9)

	entry, res, err := admin.UpdatePosition(ctx, approved[1].ID)
	require.NoError(t, err)
	assert.True(t, res.Delivered())
	assert.Equal(t, 2, entry.Position)
	assert.Equal(t, 2, f.repo.get(approved[1].ID).Position)

	sent := f.dispatcher.ofType(domain.NotificationPositionUpdate)
	require.Len(t, sent, 1)
	assert.Equal(t, 2, sent[0].QueuePosition())

	waiting := submit(t, f.queue, "Walt", domain.QueueTypeOverseer)
	_, _, err = admin.UpdatePosition(ctx, waiting.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAdminService_CallNext(t *testing.T) {
	ctx := context.Background()
	f, admin := newAdminFixture(t)
	approved := f.approveN(t, domain.QueueTypePastor, 3)

	// Any approved entry can be called, not only position 1.
	res, err := admin.CallNext(ctx, approved[2].ID)
	require.NoError(t, err)
	assert.True(t, res.Delivered())
	calls := f.dispatcher.ofType(domain.NotificationYourTurn)
	require.Len(t, calls, 1)
	assert.Equal(t, approved[2].Email, calls[0].To().Email)

	waiting := submit(t, f.queue, "Walt", domain.QueueTypePastor)
	_, err = admin.CallNext(ctx, waiting.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAdminService_CallNextReportsDeferredDelivery(t *testing.T) {
	ctx := context.Background()
	f, admin := newAdminFixture(t)
	approved := f.approveN(t, domain.QueueTypePastor, 1)
	f.dispatcher.result = domain.DispatchResult{Status: domain.DeliveryDeferred, Reason: "smtp down"}

	res, err := admin.CallNext(ctx, approved[0].ID)
	require.NoError(t, err)
	assert.False(t, res.Delivered())
	assert.Equal(t, "smtp down", res.Reason)
}
