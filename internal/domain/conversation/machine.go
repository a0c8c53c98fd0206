package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type rule struct {
	from []Status
	to   Status
}

// completed and cancelled are reserved: no event targets them.
var rules = map[Event]rule{
	EventAccept: {
		from: []Status{StatusPendingApproval},
		to:   StatusApproved,
	},
	EventDecline: {
		from: []Status{StatusPendingApproval},
		to:   StatusRejected,
	},
	EventCheckoutPaid: {
		from: []Status{StatusApproved},
		to:   StatusPaid,
	},
	EventReceiptUploaded: {
		from: []Status{StatusApproved},
		to:   StatusPaymentPending,
	},
	EventAdminActivate: {
		from: []Status{StatusPendingApproval, StatusPaymentPending, StatusPaymentNegotiation},
		to:   StatusApproved,
	},
}

// Rule returns the allowed predecessors and target status of an event.
func Rule(event Event) (from []Status, to Status, err error) {
	r, ok := rules[event]
	if !ok {
		return nil, "", fmt.Errorf("%w: unknown event %s", ErrInvalidTransition, event)
	}
	from = make([]Status, len(r.from))
	copy(from, r.from)
	return from, r.to, nil
}

// PlanChange builds the guarded change for an event.
func PlanChange(id uuid.UUID, event Event, actor, reason string) (Change, error) {
	from, to, err := Rule(event)
	if err != nil {
		return Change{}, err
	}
	return Change{
		ConversationID: id,
		Event:          event,
		From:           from,
		To:             to,
		Actor:          actor,
		Reason:         reason,
		At:             time.Now().UTC(),
	}, nil
}

// WithReceipt attaches a receipt URL to the change.
func (ch Change) WithReceipt(url string) Change {
	ch.ReceiptURL = &url
	return ch
}

// WithPaymentRef attaches a verified payment reference to the change.
func (ch Change) WithPaymentRef(ref string) Change {
	ch.PaymentRef = &ref
	return ch
}

// StatusStrings converts statuses for storage drivers.
func StatusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
