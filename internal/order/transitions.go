package order

import "fmt"

// IllegalTransitionError rejects a status change not present in the
// vertical's allow-list. The entity is left unchanged.
type IllegalTransitionError struct {
	Vertical Vertical
	From     Status
	To       Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition %s -> %s", e.Vertical, e.From, e.To)
}

// transitions holds the allow-list for every vertical. A transition from A to
// B is legal only if B appears in A's list; terminal states have no entry.
// Disputed orders are frozen: the only automatic exit is an admin refund
// where the vertical supports it.
var transitions = map[Vertical]map[Status][]Status{
	VerticalApartmentBooking: {
		StatusPending:    {StatusProcessing, StatusCancelled},
		StatusProcessing: {StatusPaid, StatusCancelled},
		StatusPaid:       {StatusCheckedIn, StatusRefunded},
		StatusCheckedIn:  {StatusCheckedOut},
		StatusCheckedOut: {StatusCompleted},
	},
	VerticalServices: {
		StatusPendingVendorResponse: {StatusAwaitingPayment, StatusDeclined, StatusVendorBusy},
		StatusAwaitingPayment:       {StatusPaid},
		StatusPaid:                  {StatusCompleted},
	},
	VerticalEcommerce: {
		StatusPendingVendor:   {StatusAwaitingPayment, StatusCancelled},
		StatusAwaitingPayment: {StatusPaid, StatusCancelled},
		StatusPaid:            {StatusProcessing, StatusDisputed, StatusRefunded},
		StatusProcessing:      {StatusShipped, StatusDisputed},
		StatusShipped:         {StatusDelivered, StatusDisputed},
		StatusDelivered:       {StatusCompleted, StatusDisputed},
		StatusDisputed:        {StatusRefunded},
	},
	VerticalFoodDelivery: {
		StatusPendingPayment: {StatusAwaitingVendor, StatusCancelled},
		StatusAwaitingVendor: {StatusAccepted, StatusCancelled},
		StatusAccepted:       {StatusPreparing},
		StatusPreparing:      {StatusReadyForPickup},
		StatusReadyForPickup: {StatusAssigned},
		StatusAssigned:       {StatusPickedUp},
		StatusPickedUp:       {StatusOnTheWay},
		StatusOnTheWay:       {StatusDelivered},
		StatusDelivered:      {StatusCompleted, StatusDisputed},
	},
}

// initialStatuses maps each vertical to the status a new order starts in.
var initialStatuses = map[Vertical]Status{
	VerticalApartmentBooking: StatusPending,
	VerticalServices:         StatusPendingVendorResponse,
	VerticalEcommerce:        StatusPendingVendor,
	VerticalFoodDelivery:     StatusPendingPayment,
}

// InitialStatus returns the starting status for a vertical's orders.
func InitialStatus(v Vertical) (Status, error) {
	s, ok := initialStatuses[v]
	if !ok {
		return "", ErrUnknownVertical
	}
	return s, nil
}

// CanTransition reports whether the vertical's allow-list permits from -> to.
func CanTransition(v Vertical, from, to Status) bool {
	table, ok := transitions[v]
	if !ok {
		return false
	}
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an IllegalTransitionError when from -> to is not in
// the vertical's allow-list.
func CheckTransition(v Vertical, from, to Status) error {
	if _, ok := transitions[v]; !ok {
		return ErrUnknownVertical
	}
	if !CanTransition(v, from, to) {
		return &IllegalTransitionError{Vertical: v, From: from, To: to}
	}
	return nil
}

// paymentTransitions maps each vertical to the transition a verified payment
// event performs. Food orders are paid up front, so their payment event moves
// them to awaiting_vendor rather than a dedicated paid status.
var paymentTransitions = map[Vertical]struct{ From, To Status }{
	VerticalApartmentBooking: {StatusProcessing, StatusPaid},
	VerticalServices:         {StatusAwaitingPayment, StatusPaid},
	VerticalEcommerce:        {StatusAwaitingPayment, StatusPaid},
	VerticalFoodDelivery:     {StatusPendingPayment, StatusAwaitingVendor},
}

// completionSources maps each vertical to the status completion departs from.
var completionSources = map[Vertical]Status{
	VerticalApartmentBooking: StatusCheckedOut,
	VerticalServices:         StatusPaid,
	VerticalEcommerce:        StatusDelivered,
	VerticalFoodDelivery:     StatusDelivered,
}

// PaymentTransition returns the transition a verified payment event performs
// for the vertical.
func PaymentTransition(v Vertical) (from, to Status) {
	tr := paymentTransitions[v]
	return tr.From, tr.To
}

// CompletionSource returns the pre-completion status for the vertical.
func CompletionSource(v Vertical) Status {
	return completionSources[v]
}

// IsSettling reports whether the transition has ledger side effects attached.
// Settling transitions may only be performed by the settlement engine; the
// generic transition API must refuse them.
func IsSettling(v Vertical, from, to Status) bool {
	if to == StatusRefunded || to == StatusCompleted {
		return true
	}
	tr, ok := paymentTransitions[v]
	return ok && from == tr.From && to == tr.To
}

// IsTerminal reports whether the status has no outgoing transitions for the
// vertical. Disputed counts as frozen rather than terminal for verticals
// that allow a refund out of it.
func IsTerminal(v Vertical, s Status) bool {
	table, ok := transitions[v]
	if !ok {
		return false
	}
	return len(table[s]) == 0
}
