package domain

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPendingPayment  Status = "PENDING_PAYMENT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusDispatched      Status = "DISPATCHED"
	StatusDelivered       Status = "DELIVERED"
)

var allStatuses = []Status{
	StatusPendingPayment,
	StatusPendingApproval,
	StatusApproved,
	StatusRejected,
	StatusDispatched,
	StatusDelivered,
}

// ParseStatus accepts any letter case, e.g. "pending_approval".
func ParseStatus(raw string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, s := range allStatuses {
		if s == candidate {
			return s, nil
		}
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", raw)}
}

func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusDelivered
}

// Event is something that happens to a sale and may move it to another status.
type Event string

const (
	EventProofUploaded Event = "proof_uploaded"
	EventApproved      Event = "approved"
	EventRejected      Event = "rejected"
	EventDispatched    Event = "dispatched"
	EventDelivered     Event = "delivered"
)

// StockEffect is what a transition does to the reservations of the sale's lines.
type StockEffect int

const (
	StockNone StockEffect = iota
	StockCommit
	StockRelease
)

func (e StockEffect) String() string {
	switch e {
	case StockCommit:
		return "commit"
	case StockRelease:
		return "release"
	default:
		return "none"
	}
}

type edge struct {
	from  Status
	to    Status
	stock StockEffect
}

// Every event is legal from exactly one status.
var transitions = map[Event]edge{
	EventProofUploaded: {from: StatusPendingPayment, to: StatusPendingApproval, stock: StockNone},
	EventApproved:      {from: StatusPendingApproval, to: StatusApproved, stock: StockCommit},
	EventRejected:      {from: StatusPendingApproval, to: StatusRejected, stock: StockRelease},
	EventDispatched:    {from: StatusApproved, to: StatusDispatched, stock: StockNone},
	EventDelivered:     {from: StatusDispatched, to: StatusDelivered, stock: StockNone},
}

// Next resolves the status reached when ev is applied to a sale in status from.
func Next(from Status, ev Event) (Status, StockEffect, error) {
	e, ok := transitions[ev]
	if !ok || e.from != from {
		return "", StockNone, &InvalidTransitionError{From: from, Event: ev}
	}
	return e.to, e.stock, nil
}

// CanTransition reports whether the table has an edge from -> to.
func CanTransition(from, to Status) bool {
	for _, e := range transitions {
		if e.from == from && e.to == to {
			return true
		}
	}
	return false
}
