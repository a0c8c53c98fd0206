package conversation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the booking lifecycle state of a conversation.
type Status string

const (
	StatusPendingApproval    Status = "pending_approval"
	StatusApproved           Status = "approved"
	StatusRejected           Status = "rejected"
	StatusPaymentPending     Status = "payment_pending"
	StatusPaid               Status = "paid"
	StatusPaymentNegotiation Status = "payment_negotiation"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// Event names a trigger that moves a conversation between statuses.
type Event string

const (
	EventRequestTest     Event = "REQUEST_TEST"
	EventAccept          Event = "ACCEPT"
	EventDecline         Event = "DECLINE"
	EventCheckoutPaid    Event = "CHECKOUT_PAID"
	EventReceiptUploaded Event = "RECEIPT_UPLOADED"
	EventOpenSupport     Event = "OPEN_SUPPORT"
	EventAdminActivate   Event = "ADMIN_ACTIVATE"
)

// Side identifies one party of a conversation.
type Side string

const (
	SideClient  Side = "client"
	SideChecker Side = "checker"
)

var (
	ErrNotFound          = errors.New("conversation not found")
	ErrInvalidTransition = errors.New("invalid conversation status transition")
	ErrTerminal          = errors.New("conversation is in a terminal status")
	ErrDuplicateOpen     = errors.New("an open conversation already exists for this client and checker")
	ErrDuplicatePayment  = errors.New("payment reference already used")
	ErrInvalidPrice      = errors.New("price must be non-negative")
	ErrInvalidStatus     = errors.New("invalid conversation status")
)

// ConflictError is returned when a guarded transition finds the conversation
// in a status other than the allowed predecessors.
type ConflictError struct {
	ConversationID uuid.UUID
	Event          Event
	Current        Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conversation %s: cannot apply %s from status %s", e.ConversationID, e.Event, e.Current)
}

// Unwrap lets callers match conflicts on terminal rows with ErrTerminal.
func (e *ConflictError) Unwrap() error {
	if IsTerminal(e.Current) {
		return ErrTerminal
	}
	return ErrInvalidTransition
}

// Conversation is one client-checker engagement. It carries both the booking
// status and the message thread.
type Conversation struct {
	ID            uuid.UUID       `json:"id"`
	ClientID      uuid.UUID       `json:"client_id"`
	CheckerID     uuid.UUID       `json:"checker_id"`
	Status        Status          `json:"status"`
	Price         decimal.Decimal `json:"price"`
	ReceiptURL    *string         `json:"receipt_url,omitempty"`
	PaymentRef    *string         `json:"payment_ref,omitempty"`
	ClientHidden  bool            `json:"client_hidden"`
	CheckerHidden bool            `json:"checker_hidden"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Detail is a conversation joined with the display names of both parties.
type Detail struct {
	Conversation
	ClientName    string    `json:"client_name"`
	CheckerName   string    `json:"checker_name"`
	CheckerUserID uuid.UUID `json:"checker_user_id"`
}

// Transition is one recorded status change.
type Transition struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Event          Event     `json:"event"`
	From           *Status   `json:"from,omitempty"`
	To             Status    `json:"to"`
	Actor          string    `json:"actor"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Change is a guarded status update. It is applied only when the stored status
// is one of From; ReceiptURL and PaymentRef are written in the same update.
type Change struct {
	ConversationID uuid.UUID
	Event          Event
	From           []Status
	To             Status
	ReceiptURL     *string
	PaymentRef     *string
	Actor          string
	Reason         string
	At             time.Time
}

// New creates a booking in pending_approval priced at the checker's current price.
func New(clientID, checkerID uuid.UUID, price decimal.Decimal) (*Conversation, error) {
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	now := time.Now().UTC()
	return &Conversation{
		ID:        uuid.New(),
		ClientID:  clientID,
		CheckerID: checkerID,
		Status:    StatusPendingApproval,
		Price:     price,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewSupport creates the payment_negotiation thread between a client and the
// admin checker.
func NewSupport(clientID, adminCheckerID uuid.UUID) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        uuid.New(),
		ClientID:  clientID,
		CheckerID: adminCheckerID,
		Status:    StatusPaymentNegotiation,
		Price:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusRejected, StatusPaymentPending,
		StatusPaid, StatusPaymentNegotiation, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no event may leave the status.
func IsTerminal(s Status) bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

// IsUnlocked reports whether the booked service may proceed.
func IsUnlocked(s Status) bool {
	return s == StatusApproved || s == StatusPaid
}

// IsOpen reports whether the status counts against the one-open-conversation
// per client/checker pair constraint.
func IsOpen(s Status) bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusPaymentPending, StatusPaid, StatusPaymentNegotiation:
		return true
	default:
		return false
	}
}

// OpenStatuses lists the statuses for which IsOpen is true.
func OpenStatuses() []Status {
	return []Status{StatusPendingApproval, StatusApproved, StatusPaymentPending, StatusPaid, StatusPaymentNegotiation}
}

// IsUnlocked reports whether the booked service may proceed.
func (c *Conversation) IsUnlocked() bool {
	return IsUnlocked(c.Status)
}

// SideOf returns which side the given user id is on, given the user owning the checker.
func (c *Conversation) SideOf(userID, checkerUserID uuid.UUID) (Side, bool) {
	switch userID {
	case c.ClientID:
		return SideClient, true
	case checkerUserID:
		return SideChecker, true
	default:
		return "", false
	}
}

// CanApply validates an event against the current status.
func (c *Conversation) CanApply(event Event) error {
	r, ok := rules[event]
	if !ok {
		return fmt.Errorf("%w: unknown event %s", ErrInvalidTransition, event)
	}
	for _, s := range r.from {
		if s == c.Status {
			return nil
		}
	}
	return &ConflictError{ConversationID: c.ID, Event: event, Current: c.Status}
}

// Apply mutates the conversation according to a guarded change and returns the
// recorded transition. The conversation is left untouched on error.
func (c *Conversation) Apply(ch Change) (*Transition, error) {
	allowed := false
	for _, s := range ch.From {
		if s == c.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, &ConflictError{ConversationID: c.ID, Event: ch.Event, Current: c.Status}
	}
	if !ch.To.Valid() {
		return nil, ErrInvalidStatus
	}
	at := ch.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	from := c.Status
	c.Status = ch.To
	if ch.ReceiptURL != nil {
		url := *ch.ReceiptURL
		c.ReceiptURL = &url
	}
	if ch.PaymentRef != nil {
		ref := *ch.PaymentRef
		c.PaymentRef = &ref
	}
	c.UpdatedAt = at
	return &Transition{
		ID:             uuid.New(),
		ConversationID: c.ID,
		Event:          ch.Event,
		From:           &from,
		To:             ch.To,
		Actor:          ch.Actor,
		Reason:         ch.Reason,
		CreatedAt:      at,
	}, nil
}
