package orders

import (
	"fmt"

	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
)

// State is the part of an order the lifecycle rules read.
type State struct {
	Payment        enums.PaymentStatus
	Delivery       enums.DeliveryStatus
	TrackingNumber string
}

// StateOf extracts the lifecycle state from a persisted order.
func StateOf(payment enums.PaymentStatus, delivery enums.DeliveryStatus, tracking *string) State {
	s := State{Payment: payment, Delivery: delivery}
	if tracking != nil {
		s.TrackingNumber = *tracking
	}
	return s
}

type EventKind int

const (
	EventPlaced EventKind = iota + 1
	EventPaymentConfirmed
	EventPaymentFailed
	EventTrackingAssigned
	EventStatusSet
)

// Event is an input to the lifecycle.
type Event struct {
	Kind           EventKind
	Status         enums.DeliveryStatus
	TrackingNumber string
}

func Placed() Event { return Event{Kind: EventPlaced} }

func PaymentConfirmed() Event { return Event{Kind: EventPaymentConfirmed} }

func PaymentFailed() Event { return Event{Kind: EventPaymentFailed} }

func TrackingAssigned(number string) Event {
	return Event{Kind: EventTrackingAssigned, TrackingNumber: number}
}

func StatusSet(status enums.DeliveryStatus) Event {
	return Event{Kind: EventStatusSet, Status: status}
}

// Entry is a tracking event to append.
type Entry struct {
	Status   enums.DeliveryStatus
	Location string
	Message  string
}

// Transition is the outcome of applying an event. Entries is empty when the
// event changed nothing.
type Transition struct {
	Next    State
	Entries []Entry
}

// Changed reports whether anything observable happened.
func (t Transition) Changed() bool {
	return len(t.Entries) > 0
}

const (
	MessageManifestReceived = "Order manifest received"
	MessagePaymentConfirmed = "Payment confirmed"
	MessagePaymentFailed    = "Payment was not completed; order cancelled"
)

// Canned returns the location and message shown for a delivery status.
func Canned(status enums.DeliveryStatus) (location, message string) {
	switch status {
	case enums.DeliveryStatusPending:
		return "Warehouse", MessageManifestReceived
	case enums.DeliveryStatusProcessing:
		return "Fulfillment Center", "Order is being prepared"
	case enums.DeliveryStatusShipped:
		return "In Transit", "Package handed over to courier"
	case enums.DeliveryStatusDelivered:
		return "Destination", "Package delivered"
	case enums.DeliveryStatusCancelled:
		return "Warehouse", "Order cancelled"
	}
	return "Warehouse", string(status)
}

// Apply is the pure lifecycle function. It never performs I/O; callers
// persist Next and Entries.
func Apply(s State, e Event) (Transition, error) {
	switch e.Kind {
	case EventPlaced:
		if s.Payment != "" || s.Delivery != "" {
			return Transition{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order already placed")
		}
		location, _ := Canned(enums.DeliveryStatusPending)
		next := State{Payment: enums.PaymentStatusPending, Delivery: enums.DeliveryStatusPending}
		return Transition{Next: next, Entries: []Entry{{
			Status:   enums.DeliveryStatusPending,
			Location: location,
			Message:  MessageManifestReceived,
		}}}, nil

	case EventPaymentConfirmed:
		if s.Payment == enums.PaymentStatusPaid {
			return Transition{Next: s}, nil
		}
		if s.Payment != enums.PaymentStatusPending {
			return Transition{}, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot confirm payment from %s", s.Payment))
		}
		next := s
		next.Payment = enums.PaymentStatusPaid
		location, _ := Canned(enums.DeliveryStatusProcessing)
		entry := Entry{Status: s.Delivery, Location: location, Message: MessagePaymentConfirmed}
		if s.Delivery == enums.DeliveryStatusPending {
			next.Delivery = enums.DeliveryStatusProcessing
			entry.Status = enums.DeliveryStatusProcessing
		}
		return Transition{Next: next, Entries: []Entry{entry}}, nil

	case EventPaymentFailed:
		if s.Payment != enums.PaymentStatusPending {
			return Transition{}, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot fail payment from %s", s.Payment))
		}
		next := s
		next.Payment = enums.PaymentStatusFailed
		if s.Delivery.IsTerminal() {
			return Transition{Next: next}, nil
		}
		next.Delivery = enums.DeliveryStatusCancelled
		location, _ := Canned(enums.DeliveryStatusCancelled)
		return Transition{Next: next, Entries: []Entry{{
			Status:   enums.DeliveryStatusCancelled,
			Location: location,
			Message:  MessagePaymentFailed,
		}}}, nil

	case EventTrackingAssigned:
		if e.TrackingNumber == "" {
			return Transition{}, pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
		}
		next := s
		next.TrackingNumber = e.TrackingNumber
		location, _ := Canned(enums.DeliveryStatusShipped)
		switch s.Delivery {
		case enums.DeliveryStatusPending, enums.DeliveryStatusProcessing:
			next.Delivery = enums.DeliveryStatusShipped
			return Transition{Next: next, Entries: []Entry{{
				Status:   enums.DeliveryStatusShipped,
				Location: location,
				Message:  "Shipped with tracking number " + e.TrackingNumber,
			}}}, nil
		case enums.DeliveryStatusShipped, enums.DeliveryStatusDelivered, enums.DeliveryStatusCancelled:
			return Transition{Next: next, Entries: []Entry{{
				Status:   s.Delivery,
				Location: location,
				Message:  "Tracking number updated to " + e.TrackingNumber,
			}}}, nil
		}
		return Transition{}, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("unknown delivery status %q", s.Delivery))

	case EventStatusSet:
		if !e.Status.IsValid() {
			return Transition{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid delivery status %q", e.Status))
		}
		if e.Status == s.Delivery {
			return Transition{Next: s}, nil
		}
		if s.Delivery.IsTerminal() {
			return Transition{}, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is already %s", s.Delivery)).
				WithDetails(map[string]any{"from": s.Delivery, "to": e.Status})
		}
		next := s
		next.Delivery = e.Status
		location, message := Canned(e.Status)
		return Transition{Next: next, Entries: []Entry{{Status: e.Status, Location: location, Message: message}}}, nil
	}
	return Transition{}, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown order event %d", e.Kind))
}

// StampColumn names the timestamp column set on entering a delivery status.
func StampColumn(status enums.DeliveryStatus) string {
	switch status {
	case enums.DeliveryStatusShipped:
		return "shipped_at"
	case enums.DeliveryStatusDelivered:
		return "delivered_at"
	case enums.DeliveryStatusCancelled:
		return "cancelled_at"
	case enums.DeliveryStatusPending, enums.DeliveryStatusProcessing:
		return ""
	}
	return ""
}
