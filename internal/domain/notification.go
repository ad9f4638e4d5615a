package domain

import (
	"net/mail"
	"strings"
)

type NotificationType string

const (
	NotificationApproval       NotificationType = "approval"
	NotificationDecline        NotificationType = "decline"
	NotificationPositionUpdate NotificationType = "position_update"
	NotificationYourTurn       NotificationType = "your_turn"
)

type Recipient struct {
	// EntryID links the notification to its queue entry in the notification log; empty for ad-hoc sends.
	EntryID   string
	Email     string
	FirstName string
	LastName  string
}

// RecipientOf builds the notification target for a queue entry.
func RecipientOf(e *QueueEntry) Recipient {
	return Recipient{EntryID: e.ID, Email: e.Email, FirstName: e.FirstName, LastName: e.LastName}
}

// Notification is one of ApprovalNotice, DeclineNotice, PositionUpdateNotice or YourTurnNotice.
// Each variant is validated by its constructor.
type Notification interface {
	Type() NotificationType
	To() Recipient
	// QueuePosition is the position carried in the email, 0 when the variant has none.
	QueuePosition() int
	// Reason is the decline reason, empty for other variants.
	Reason() string
}

type ApprovalNotice struct {
	recipient Recipient
	position  int
}

type DeclineNotice struct {
	recipient Recipient
	reason    string
}

type PositionUpdateNotice struct {
	recipient Recipient
	position  int
}

type YourTurnNotice struct {
	recipient Recipient
}

func NewApprovalNotice(to Recipient, position int) (*ApprovalNotice, error) {
	if err := validateRecipient(to); err != nil {
		return nil, err
	}
	if position < 0 {
		return nil, &ValidationError{Field: "queuePosition", Message: "must not be negative"}
	}
	return &ApprovalNotice{recipient: to, position: position}, nil
}

func NewDeclineNotice(to Recipient, reason string) (*DeclineNotice, error) {
	if err := validateRecipient(to); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Message: "is required for a decline"}
	}
	return &DeclineNotice{recipient: to, reason: reason}, nil
}

func NewPositionUpdateNotice(to Recipient, position int) (*PositionUpdateNotice, error) {
	if err := validateRecipient(to); err != nil {
		return nil, err
	}
	if position < 1 {
		return nil, &ValidationError{Field: "queuePosition", Message: "must be at least 1"}
	}
	return &PositionUpdateNotice{recipient: to, position: position}, nil
}

func NewYourTurnNotice(to Recipient) (*YourTurnNotice, error) {
	if err := validateRecipient(to); err != nil {
		return nil, err
	}
	return &YourTurnNotice{recipient: to}, nil
}

func (n *ApprovalNotice) Type() NotificationType { return NotificationApproval }
func (n *ApprovalNotice) To() Recipient          { return n.recipient }
func (n *ApprovalNotice) QueuePosition() int     { return n.position }
func (n *ApprovalNotice) Reason() string         { return "" }

func (n *DeclineNotice) Type() NotificationType { return NotificationDecline }
func (n *DeclineNotice) To() Recipient          { return n.recipient }
func (n *DeclineNotice) QueuePosition() int     { return 0 }
func (n *DeclineNotice) Reason() string         { return n.reason }

func (n *PositionUpdateNotice) Type() NotificationType { return NotificationPositionUpdate }
func (n *PositionUpdateNotice) To() Recipient          { return n.recipient }
func (n *PositionUpdateNotice) QueuePosition() int     { return n.position }
func (n *PositionUpdateNotice) Reason() string         { return "" }

func (n *YourTurnNotice) Type() NotificationType { return NotificationYourTurn }
func (n *YourTurnNotice) To() Recipient          { return n.recipient }
func (n *YourTurnNotice) QueuePosition() int     { return 0 }
func (n *YourTurnNotice) Reason() string         { return "" }

func validateRecipient(to Recipient) error {
	if err := ValidateEmail(to.Email); err != nil {
		return err
	}
	if strings.TrimSpace(to.FirstName) == "" {
		return &ValidationError{Field: "firstName", Message: "is required"}
	}
	return nil
}

// ValidateEmail performs the syntactic check applied at submission and before sending.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	return nil
}

// DeliveryStatus distinguishes a delivered email from one swallowed by the failure policy.
type DeliveryStatus string

const (
	DeliverySent     DeliveryStatus = "sent"
	DeliveryDeferred DeliveryStatus = "deferred"
)

type DispatchResult struct {
	Status  DeliveryStatus `json:"status"`
	EmailID string         `json:"emailId,omitempty"`
	// Reason explains why delivery was deferred.
	Reason string `json:"reason,omitempty"`
}

func (r DispatchResult) Delivered() bool {
	return r.Status == DeliverySent
}

// EmailPayload is the JSON body accepted by the send-email function.
type EmailPayload struct {
	To            string           `json:"to"`
	Name          string           `json:"name"`
	Surname       string           `json:"surname"`
	Type          NotificationType `json:"type"`
	QueuePosition int              `json:"queuePosition,omitempty"`
	EstimatedTime string           `json:"estimatedTime,omitempty"`
	Reason        string           `json:"reason,omitempty"`
}
