package domain

import "time"

type QueueType string

const (
	QueueTypeOverseer QueueType = "overseer"
	QueueTypePastor   QueueType = "pastor"
)

// QueueTypes lists every office queue, in a stable order.
var QueueTypes = []QueueType{QueueTypeOverseer, QueueTypePastor}

func (t QueueType) Valid() bool {
	return t == QueueTypeOverseer || t == QueueTypePastor
}

func ParseQueueType(s string) (QueueType, error) {
	t := QueueType(s)
	if !t.Valid() {
		return "", &ValidationError{Field: "queueType", Message: "must be one of overseer, pastor"}
	}
	return t, nil
}

type QueueStatus string

const (
	QueueStatusWaiting   QueueStatus = "waiting"
	QueueStatusApproved  QueueStatus = "approved"
	QueueStatusDeclined  QueueStatus = "declined"
	QueueStatusCompleted QueueStatus = "completed"
	QueueStatusCancelled QueueStatus = "cancelled"
)

var queueTransitions = map[QueueStatus][]QueueStatus{
	QueueStatusWaiting:  {QueueStatusApproved, QueueStatusDeclined},
	QueueStatusApproved: {QueueStatusCompleted, QueueStatusCancelled},
}

func (s QueueStatus) Valid() bool {
	switch s {
	case QueueStatusWaiting, QueueStatusApproved, QueueStatusDeclined, QueueStatusCompleted, QueueStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s QueueStatus) Terminal() bool {
	return len(queueTransitions[s]) == 0
}

// CanTransitionTo reports whether the status machine allows s -> next.
func (s QueueStatus) CanTransitionTo(next QueueStatus) bool {
	for _, allowed := range queueTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type QueueEntry struct {
	ID            string      `json:"id"`
	FirstName     string      `json:"firstName"`
	LastName      string      `json:"lastName"`
	Email         string      `json:"email"`
	Reason        string      `json:"reason"`
	QueueType     QueueType   `json:"queueType"`
	Status        QueueStatus `json:"status"`
	Position      int         `json:"position"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	ApprovedAt    *time.Time  `json:"approvedAt,omitempty"`
	DeclinedAt    *time.Time  `json:"declinedAt,omitempty"`
	AdminNotes    string      `json:"adminNotes,omitempty"`
	DeclineReason string      `json:"declineReason,omitempty"`
}

// FullName joins first and last name for display and email greetings.
func (e *QueueEntry) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}
