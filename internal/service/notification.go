package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
	"consultation-queue-backend/internal/metrics"
)

const defaultMinutesPerPosition = 12

type notificationDispatcher struct {
	sender             EmailSender
	minutesPerPosition int
}

func NewNotificationDispatcher(sender EmailSender, minutesPerPosition int) NotificationDispatcher {
	if minutesPerPosition <= 0 {
		minutesPerPosition = defaultMinutesPerPosition
	}
	return &notificationDispatcher{sender: sender, minutesPerPosition: minutesPerPosition}
}

// Send never fails the caller: every problem is logged and reported as a deferred result.
func (d *notificationDispatcher) Send(ctx context.Context, n domain.Notification) (res domain.DispatchResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Email sender panicked", "panic", r)
			res = deferred(fmt.Sprintf("sender panic: %v", r))
		}
		kind := "unknown"
		if n != nil {
			kind = string(n.Type())
		}
		metrics.RecordNotification(kind, string(res.Status))
	}()

	if n == nil {
		return deferred("no notification")
	}
	if d.sender == nil {
		logger.Warn("Email sender not configured", "type", n.Type())
		return deferred("email sender not configured")
	}

	payload := d.payloadFor(n)
	logger.ExternalServiceCall(d.sender.Name(), "SendEmail", "type", payload.Type, "to", payload.To)
	start := time.Now()
	emailID, err := d.sender.Send(ctx, payload)
	metrics.RecordProviderCall(d.sender.Name(), time.Since(start))
	logger.ExternalServiceResult(d.sender.Name(), "SendEmail", err, "type", payload.Type, "email_id", emailID)
	if err != nil {
		return deferred(err.Error())
	}
	return domain.DispatchResult{Status: domain.DeliverySent, EmailID: emailID}
}

func (d *notificationDispatcher) SendEmail(ctx context.Context, to, name, surname string, kind domain.NotificationType, queuePosition int, reason string) domain.DispatchResult {
	n, err := buildNotification(to, name, surname, kind, queuePosition, reason)
	if err != nil {
		return rejected(kind, err)
	}
	return d.Send(ctx, n)
}

// buildNotification validates the flat SendEmail arguments into a notification variant.
func buildNotification(to, name, surname string, kind domain.NotificationType, queuePosition int, reason string) (domain.Notification, error) {
	recipient := domain.Recipient{Email: to, FirstName: name, LastName: surname}
	switch kind {
	case domain.NotificationApproval:
		return domain.NewApprovalNotice(recipient, queuePosition)
	case domain.NotificationDecline:
		return domain.NewDeclineNotice(recipient, reason)
	case domain.NotificationPositionUpdate:
		return domain.NewPositionUpdateNotice(recipient, queuePosition)
	case domain.NotificationYourTurn:
		return domain.NewYourTurnNotice(recipient)
	default:
		return nil, &domain.ValidationError{Field: "type", Message: fmt.Sprintf("unknown notification type %q", kind)}
	}
}

func rejected(kind domain.NotificationType, err error) domain.DispatchResult {
	logger.Warn("Rejected notification", "type", kind, "error", err)
	metrics.RecordNotification(string(kind), string(domain.DeliveryDeferred))
	return deferred(err.Error())
}

func (d *notificationDispatcher) payloadFor(n domain.Notification) domain.EmailPayload {
	to := n.To()
	p := domain.EmailPayload{
		To:      to.Email,
		Name:    to.FirstName,
		Surname: to.LastName,
		Type:    n.Type(),
		Reason:  n.Reason(),
	}
	switch n.Type() {
	case domain.NotificationApproval, domain.NotificationPositionUpdate:
		p.QueuePosition = n.QueuePosition()
		p.EstimatedTime = estimatedTime(n.QueuePosition(), d.minutesPerPosition)
	}
	return p
}

func deferred(reason string) domain.DispatchResult {
	return domain.DispatchResult{Status: domain.DeliveryDeferred, Reason: reason}
}

// EstimatedTime renders the wait for a position at the default rate of 12 minutes per place ahead.
func EstimatedTime(position int) string {
	return estimatedTime(position, defaultMinutesPerPosition)
}

func estimatedTime(position, minutesPerPosition int) string {
	if position <= 1 {
		return "Ready now"
	}
	total := (position - 1) * minutesPerPosition
	if total < 60 {
		return plural(total, "minute")
	}
	var b strings.Builder
	b.WriteString(plural(total/60, "hour"))
	if m := total % 60; m > 0 {
		b.WriteString(" ")
		b.WriteString(plural(m, "minute"))
	}
	return b.String()
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
