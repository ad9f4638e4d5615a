package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
	"consultation-queue-backend/internal/repository"
)

type queueService struct {
	repo       repository.QueueRepository
	dispatcher NotificationDispatcher
	locks      *queueLocks
	now        func() time.Time

	// pending tracks background notification sends.
	pending sync.WaitGroup
}

func NewQueueService(repo repository.QueueRepository, dispatcher NotificationDispatcher) QueueService {
	return &queueService{
		repo:       repo,
		dispatcher: dispatcher,
		locks:      newQueueLocks(),
		now:        time.Now,
	}
}

func (s *queueService) AddToQueue(ctx context.Context, firstName, lastName, email, reason string, queueType domain.QueueType) (*domain.QueueEntry, error) {
	logger.EnterMethod("queueService.AddToQueue", "queueType", queueType)

	entry := &domain.QueueEntry{
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Email:     strings.TrimSpace(email),
		Reason:    strings.TrimSpace(reason),
		QueueType: queueType,
		Status:    domain.QueueStatusWaiting,
	}
	if err := validateSubmission(entry); err != nil {
		logger.ExitMethodWithError("queueService.AddToQueue", err)
		return nil, err
	}

	unlock := s.locks.lock(queueType)
	defer unlock()

	pos, err := s.nextPosition(ctx, queueType)
	if err != nil {
		logger.ExitMethodWithError("queueService.AddToQueue", err)
		return nil, err
	}
	now := s.now().UTC()
	entry.Position = pos
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if err := s.repo.Create(ctx, entry); err != nil {
		logger.ExitMethodWithError("queueService.AddToQueue", err)
		return nil, fmt.Errorf("failed to add to queue: %w", err)
	}

	logger.ExitMethod("queueService.AddToQueue", "id", entry.ID, "position", entry.Position)
	return entry, nil
}

func (s *queueService) NextPosition(ctx context.Context, queueType domain.QueueType) (int, error) {
	if !queueType.Valid() {
		return 0, invalidQueueType()
	}
	return s.nextPosition(ctx, queueType)
}

func (s *queueService) nextPosition(ctx context.Context, queueType domain.QueueType) (int, error) {
	highest, err := s.repo.MaxPosition(ctx, queueType, domain.QueueStatusWaiting)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next position: %w", err)
	}
	return highest + 1, nil
}

func (s *queueService) GetQueueCount(ctx context.Context, queueType domain.QueueType) (int, error) {
	if !queueType.Valid() {
		return 0, invalidQueueType()
	}
	return s.repo.CountByStatus(ctx, queueType, domain.QueueStatusWaiting)
}

func (s *queueService) GetQueueEntry(ctx context.Context, id string) (*domain.QueueEntry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *queueService) GetQueueEntries(ctx context.Context, queueType domain.QueueType) ([]domain.QueueEntry, error) {
	if !queueType.Valid() {
		return nil, invalidQueueType()
	}
	return s.repo.ListByStatus(ctx, queueType, domain.QueueStatusWaiting, repository.OrderByPosition)
}

func (s *queueService) GetApprovedQueueEntries(ctx context.Context, queueType domain.QueueType) ([]domain.QueueEntry, error) {
	if !queueType.Valid() {
		return nil, invalidQueueType()
	}
	return s.repo.ListByStatus(ctx, queueType, domain.QueueStatusApproved, repository.OrderByPosition)
}

func (s *queueService) GetAllQueueEntries(ctx context.Context) ([]domain.QueueEntry, error) {
	return s.repo.ListAll(ctx)
}

func (s *queueService) GetPendingQueueEntries(ctx context.Context) ([]domain.QueueEntry, error) {
	return s.repo.ListByStatus(ctx, "", domain.QueueStatusWaiting, repository.OrderByCreatedAsc)
}

func (s *queueService) UpdateQueueStatus(ctx context.Context, id string, status domain.QueueStatus) (*domain.QueueEntry, error) {
	logger.EnterMethod("queueService.UpdateQueueStatus", "id", id, "status", status)
	if !status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Message: "unknown status"}
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		logger.ExitMethodWithError("queueService.UpdateQueueStatus", err)
		return nil, err
	}
	unlock := s.locks.lock(entry.QueueType)
	defer unlock()

	prev := entry.Status
	if err := s.transition(ctx, entry, status, func(*domain.QueueEntry) {}); err != nil {
		logger.ExitMethodWithError("queueService.UpdateQueueStatus", err)
		return nil, err
	}
	if prev == domain.QueueStatusApproved || status == domain.QueueStatusApproved {
		if err := s.refreshApprovedPosition(ctx, entry); err != nil {
			return nil, err
		}
	}

	logger.ExitMethod("queueService.UpdateQueueStatus", "id", id, "from", prev, "to", status)
	return entry, nil
}

func (s *queueService) ApproveQueueEntry(ctx context.Context, id, adminNotes string) (*domain.QueueEntry, error) {
	logger.EnterMethod("queueService.ApproveQueueEntry", "id", id)

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		logger.ExitMethodWithError("queueService.ApproveQueueEntry", err)
		return nil, err
	}
	unlock := s.locks.lock(entry.QueueType)
	err = s.transition(ctx, entry, domain.QueueStatusApproved, func(e *domain.QueueEntry) {
		e.AdminNotes = strings.TrimSpace(adminNotes)
	})
	if err == nil {
		err = s.refreshApprovedPosition(ctx, entry)
	}
	unlock()
	if err != nil {
		logger.ExitMethodWithError("queueService.ApproveQueueEntry", err)
		return nil, err
	}

	notice, nerr := domain.NewApprovalNotice(domain.RecipientOf(entry), entry.Position)
	s.notifyAsync(ctx, entry.ID, notice, nerr)

	logger.ExitMethod("queueService.ApproveQueueEntry", "id", id, "position", entry.Position)
	return entry, nil
}

func (s *queueService) DeclineQueueEntry(ctx context.Context, id, reason string) (*domain.QueueEntry, error) {
	logger.EnterMethod("queueService.DeclineQueueEntry", "id", id)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &domain.ValidationError{Field: "reason", Message: "is required for a decline"}
	}
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		logger.ExitMethodWithError("queueService.DeclineQueueEntry", err)
		return nil, err
	}
	unlock := s.locks.lock(entry.QueueType)
	err = s.transition(ctx, entry, domain.QueueStatusDeclined, func(e *domain.QueueEntry) {
		e.DeclineReason = reason
	})
	unlock()
	if err != nil {
		logger.ExitMethodWithError("queueService.DeclineQueueEntry", err)
		return nil, err
	}

	notice, nerr := domain.NewDeclineNotice(domain.RecipientOf(entry), entry.DeclineReason)
	s.notifyAsync(ctx, entry.ID, notice, nerr)

	logger.ExitMethod("queueService.DeclineQueueEntry", "id", id)
	return entry, nil
}

func (s *queueService) RecalculateQueuePositions(ctx context.Context, queueType domain.QueueType) ([]domain.QueueEntry, error) {
	if !queueType.Valid() {
		return nil, invalidQueueType()
	}
	unlock := s.locks.lock(queueType)
	defer unlock()
	return s.renumber(ctx, queueType, domain.QueueStatusApproved)
}

func (s *queueService) ReconcileWaitingPositions(ctx context.Context, queueType domain.QueueType) (int, error) {
	if !queueType.Valid() {
		return 0, invalidQueueType()
	}
	unlock := s.locks.lock(queueType)
	defer unlock()

	before, err := s.repo.ListByStatus(ctx, queueType, domain.QueueStatusWaiting, repository.OrderByCreatedAsc)
	if err != nil {
		return 0, err
	}
	changed := 0
	for i, e := range before {
		if e.Position != i+1 {
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	if _, err := s.applyPositions(ctx, before); err != nil {
		return 0, err
	}
	return changed, nil
}

func (s *queueService) RemoveFromQueueWithUpdate(ctx context.Context, id string, queueType domain.QueueType) error {
	logger.EnterMethod("queueService.RemoveFromQueueWithUpdate", "id", id, "queueType", queueType)
	if !queueType.Valid() {
		return invalidQueueType()
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		logger.ExitMethodWithError("queueService.RemoveFromQueueWithUpdate", err)
		return err
	}
	if entry.QueueType != queueType {
		return &domain.ValidationError{Field: "queueType", Message: fmt.Sprintf("entry belongs to the %s queue", entry.QueueType)}
	}

	unlock := s.locks.lock(queueType)
	defer unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		logger.ExitMethodWithError("queueService.RemoveFromQueueWithUpdate", err)
		return fmt.Errorf("failed to remove queue entry: %w", err)
	}
	affected := domain.QueueStatusApproved
	if entry.Status == domain.QueueStatusWaiting {
		affected = domain.QueueStatusWaiting
	}
	if _, err := s.renumber(ctx, queueType, affected); err != nil {
		logger.ExitMethodWithError("queueService.RemoveFromQueueWithUpdate", err)
		return err
	}

	logger.ExitMethod("queueService.RemoveFromQueueWithUpdate", "id", id)
	return nil
}

// transition applies the status change and its timestamps, then persists entry.
// An entry leaving the waiting set closes its gap. Callers hold the queue type lock.
func (s *queueService) transition(ctx context.Context, entry *domain.QueueEntry, next domain.QueueStatus, mutate func(*domain.QueueEntry)) error {
	if !entry.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, entry.Status, next)
	}
	now := s.now().UTC()
	prev := entry.Status
	entry.Status = next
	entry.UpdatedAt = now
	switch next {
	case domain.QueueStatusApproved:
		entry.ApprovedAt = &now
	case domain.QueueStatusDeclined:
		entry.DeclinedAt = &now
	}
	mutate(entry)

	if err := s.repo.Update(ctx, entry); err != nil {
		return fmt.Errorf("failed to update queue entry: %w", err)
	}
	if prev == domain.QueueStatusWaiting {
		if _, err := s.renumber(ctx, entry.QueueType, domain.QueueStatusWaiting); err != nil {
			return err
		}
	}
	return nil
}

// refreshApprovedPosition renumbers the approved set and copies entry's new rank back.
func (s *queueService) refreshApprovedPosition(ctx context.Context, entry *domain.QueueEntry) error {
	approved, err := s.renumber(ctx, entry.QueueType, domain.QueueStatusApproved)
	if err != nil {
		return err
	}
	for _, e := range approved {
		if e.ID == entry.ID {
			entry.Position = e.Position
			entry.UpdatedAt = e.UpdatedAt
			break
		}
	}
	return nil
}

// renumber rewrites positions of one status set to 1..N in createdAt order.
func (s *queueService) renumber(ctx context.Context, queueType domain.QueueType, status domain.QueueStatus) ([]domain.QueueEntry, error) {
	entries, err := s.repo.ListByStatus(ctx, queueType, status, repository.OrderByCreatedAsc)
	if err != nil {
		return nil, fmt.Errorf("failed to recalculate positions: %w", err)
	}
	return s.applyPositions(ctx, entries)
}

func (s *queueService) applyPositions(ctx context.Context, entries []domain.QueueEntry) ([]domain.QueueEntry, error) {
	now := s.now().UTC()
	changed := make(map[string]int)
	for i := range entries {
		if entries[i].Position != i+1 {
			changed[entries[i].ID] = i + 1
			entries[i].Position = i + 1
			entries[i].UpdatedAt = now
		}
	}
	if err := s.repo.UpdatePositions(ctx, changed, now); err != nil {
		return nil, fmt.Errorf("failed to persist positions: %w", err)
	}
	if len(changed) > 0 {
		logger.Info("Queue positions renumbered", "changed", len(changed), "total", len(entries))
	}
	return entries, nil
}

// Close waits for background notifications started by earlier calls.
func (s *queueService) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notifications still in flight: %w", ctx.Err())
	}
}

// notifyAsync sends n in the background; the caller's result never depends on it.
func (s *queueService) notifyAsync(ctx context.Context, entryID string, n domain.Notification, buildErr error) {
	if buildErr != nil {
		logger.Warn("Notification not sent", "id", entryID, "error", buildErr)
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		res := s.dispatcher.Send(ctx, n)
		if !res.Delivered() {
			logger.Warn("Notification deferred", "id", entryID, "type", n.Type(), "reason", res.Reason)
		}
	}()
}

func validateSubmission(e *domain.QueueEntry) error {
	if e.FirstName == "" {
		return &domain.ValidationError{Field: "firstName", Message: "is required"}
	}
	if e.LastName == "" {
		return &domain.ValidationError{Field: "lastName", Message: "is required"}
	}
	if err := domain.ValidateEmail(e.Email); err != nil {
		return err
	}
	if e.Reason == "" {
		return &domain.ValidationError{Field: "reason", Message: "is required"}
	}
	if !e.QueueType.Valid() {
		return invalidQueueType()
	}
	return nil
}

func invalidQueueType() error {
	return &domain.ValidationError{Field: "queueType", Message: "must be one of overseer, pastor"}
}
