package domain

import "time"

// NotificationRecord is one row of the notification log: a single dispatch attempt and its outcome.
type NotificationRecord struct {
	ID            int64            `json:"id"`
	EntryID       string           `json:"entryId,omitempty"`
	Type          NotificationType `json:"type"`
	Email         string           `json:"email"`
	QueuePosition int              `json:"queuePosition,omitempty"`
	Status        DeliveryStatus   `json:"status"`
	EmailID       string           `json:"emailId,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// NewNotificationRecord captures the outcome of dispatching n.
func NewNotificationRecord(n Notification, res DispatchResult, at time.Time) *NotificationRecord {
	to := n.To()
	return &NotificationRecord{
		EntryID:       to.EntryID,
		Type:          n.Type(),
		Email:         to.Email,
		QueuePosition: n.QueuePosition(),
		Status:        res.Status,
		EmailID:       res.EmailID,
		Reason:        res.Reason,
		CreatedAt:     at,
	}
}
