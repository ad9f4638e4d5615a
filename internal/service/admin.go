package service

import (
	"context"
	"fmt"
	"strings"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
)

type adminService struct {
	queue      QueueService
	monitor    PositionMonitor
	dispatcher NotificationDispatcher
}

func NewAdminService(queue QueueService, monitor PositionMonitor, dispatcher NotificationDispatcher) AdminService {
	return &adminService{
		queue:      queue,
		monitor:    monitor,
		dispatcher: dispatcher,
	}
}

// Approve approves a waiting entry and pushes position updates to the top of the approved queue.
// Positions follow submission order, so a desired position is kept in the admin notes only.
func (s *adminService) Approve(ctx context.Context, id, notes string, desiredPosition int) (*domain.QueueEntry, error) {
	if desiredPosition < 0 {
		return nil, &domain.ValidationError{Field: "position", Message: "must not be negative"}
	}
	notes = strings.TrimSpace(notes)
	if desiredPosition > 0 {
		logger.Info("Approval requested a position override", "id", id, "position", desiredPosition)
		requested := fmt.Sprintf("requested position %d", desiredPosition)
		if notes == "" {
			notes = requested
		} else {
			notes = notes + " (" + requested + ")"
		}
	}

	entry, err := s.queue.ApproveQueueEntry(ctx, id, notes)
	if err != nil {
		return nil, err
	}

	approved, err := s.monitor.TriggerPositionUpdate(ctx, entry.QueueType)
	if err != nil {
		// The approval itself is already persisted.
		logger.Error("Position update after approval failed", "id", id, "error", err)
		return entry, nil
	}
	for _, e := range approved {
		if e.ID == entry.ID {
			entry.Position = e.Position
			break
		}
	}
	return entry, nil
}

func (s *adminService) Decline(ctx context.Context, id, reason string) (*domain.QueueEntry, error) {
	return s.queue.DeclineQueueEntry(ctx, id, reason)
}

// Resend repeats the approval or decline email for the entry's current status.
func (s *adminService) Resend(ctx context.Context, id string) (domain.DispatchResult, error) {
	entry, err := s.queue.GetQueueEntry(ctx, id)
	if err != nil {
		return domain.DispatchResult{}, err
	}

	var n domain.Notification
	switch entry.Status {
	case domain.QueueStatusApproved:
		n, err = domain.NewApprovalNotice(domain.RecipientOf(entry), entry.Position)
	case domain.QueueStatusDeclined:
		n, err = domain.NewDeclineNotice(domain.RecipientOf(entry), entry.DeclineReason)
	default:
		return domain.DispatchResult{}, fmt.Errorf("%w: nothing to resend for a %s entry", domain.ErrInvalidTransition, entry.Status)
	}
	if err != nil {
		return domain.DispatchResult{}, err
	}
	return s.dispatcher.Send(ctx, n), nil
}

// UpdatePosition recomputes the entry's rank in the approved set and emails it.
func (s *adminService) UpdatePosition(ctx context.Context, id string) (*domain.QueueEntry, domain.DispatchResult, error) {
	entry, err := s.approvedEntry(ctx, id)
	if err != nil {
		return nil, domain.DispatchResult{}, err
	}

	approved, err := s.queue.RecalculateQueuePositions(ctx, entry.QueueType)
	if err != nil {
		return nil, domain.DispatchResult{}, err
	}
	found := false
	for _, e := range approved {
		if e.ID == entry.ID {
			*entry = e
			found = true
			break
		}
	}
	if !found {
		return nil, domain.DispatchResult{}, domain.ErrNotFound
	}

	n, err := domain.NewPositionUpdateNotice(domain.RecipientOf(entry), entry.Position)
	if err != nil {
		return entry, domain.DispatchResult{}, err
	}
	return entry, s.dispatcher.Send(ctx, n), nil
}

// CallNext sends the "your turn" email regardless of position.
func (s *adminService) CallNext(ctx context.Context, id string) (domain.DispatchResult, error) {
	entry, err := s.approvedEntry(ctx, id)
	if err != nil {
		return domain.DispatchResult{}, err
	}
	n, err := domain.NewYourTurnNotice(domain.RecipientOf(entry))
	if err != nil {
		return domain.DispatchResult{}, err
	}
	return s.dispatcher.Send(ctx, n), nil
}

func (s *adminService) approvedEntry(ctx context.Context, id string) (*domain.QueueEntry, error) {
	entry, err := s.queue.GetQueueEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status != domain.QueueStatusApproved {
		return nil, fmt.Errorf("%w: action requires an approved entry, got %s", domain.ErrInvalidTransition, entry.Status)
	}
	return entry, nil
}
