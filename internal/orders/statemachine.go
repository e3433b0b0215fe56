package orders

import (
	"strings"

	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
)

// EventKind is an input to the order state machine.
type EventKind string

const (
	EventCreate             EventKind = "create"
	EventReservationFailed  EventKind = "reservation_failed"
	EventPaymentVerified    EventKind = "payment_verified"
	EventPaymentFailed      EventKind = "payment_failed"
	EventPaymentExpired     EventKind = "payment_expired"
	EventConfirmationFailed EventKind = "confirmation_failed"
	EventCancel             EventKind = "cancel"
	EventExchange           EventKind = "exchange"
	EventReturn             EventKind = "return"
	EventMarkReady          EventKind = "mark_ready"
	EventDispatch           EventKind = "dispatch"
	EventDeliver            EventKind = "deliver"
)

// Line is the state machine's view of a line item.
type Line struct {
	Position int
	SKUID    string
	Quantity int
	Reserved bool
	Released bool
}

// Snapshot is everything Transition needs to know about an order. A zero
// Status means the order does not exist yet.
type Snapshot struct {
	Status           enums.OrderStatus
	PaymentMethod    enums.PaymentMethod
	PaymentStatus    enums.PaymentStatus
	TotalAmount      int64
	WalletAmountUsed int64
	WalletDebited    bool
	Lines            []Line

	// OpenRequest is set while an exchange or return awaits an operator.
	OpenRequest bool
	// RefundedAmount sums refunds already opened and not rejected.
	RefundedAmount int64
}

// SnapshotOf projects a persisted order. Line items, refunds and exchanges
// must be loaded.
func SnapshotOf(o *models.Order) Snapshot {
	lines := make([]Line, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		lines = append(lines, Line{
			Position: li.Position,
			SKUID:    li.SKUID,
			Quantity: li.Quantity,
			Reserved: li.StockReserved,
			Released: li.StockReleased,
		})
	}
	var refunded int64
	for _, r := range o.Refunds {
		if r.Status != enums.RefundStatusRejected {
			refunded += r.Amount
		}
	}
	open := false
	for _, x := range o.Exchanges {
		if x.Status == enums.ExchangeStatusPending || x.Status == enums.ExchangeStatusApproved {
			open = true
		}
	}
	return Snapshot{
		Status:           o.OrderStatus,
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    o.PaymentStatus,
		TotalAmount:      o.TotalAmount,
		WalletAmountUsed: o.WalletAmountUsed,
		WalletDebited:    o.WalletDebited,
		Lines:            lines,
		OpenRequest:      open,
		RefundedAmount:   refunded,
	}
}

func (s Snapshot) onlineAmount() int64 {
	return s.TotalAmount - s.WalletAmountUsed
}

// ExchangeTarget is the replacement variant for an exchange.
type ExchangeTarget struct {
	SKUID     string
	Color     string
	Size      string
	Available int
}

// Event carries the inputs a transition's guard needs.
type Event struct {
	Kind EventKind

	// payment_verified
	SignatureValid bool
	PaidAmount     int64

	// cancel, exchange, return
	Reason         string
	SpecificReason string
	BankDetails    *models.BankDetails
	Target         *ExchangeTarget
}

// Command is a side effect the saga executes after a transition.
type Command interface {
	command()
}

type ReserveStock struct {
	Position int
	SKUID    string
	Quantity int
}

type ReleaseStock struct {
	Position int
	SKUID    string
	Quantity int
}

type CreateIntent struct {
	Amount int64
}

type DebitWallet struct {
	Amount int64
}

type ReverseWallet struct{}

type OpenRefund struct {
	Source      string
	Amount      int64
	Reason      string
	BankDetails *models.BankDetails
}

type OpenExchange struct {
	IsReturn       bool
	Reason         string
	SpecificReason string
	Target         *ExchangeTarget
}

type SetPaymentStatus struct {
	Status enums.PaymentStatus
}

type EmitEvent struct {
	Type enums.OutboxEventType
}

func (ReserveStock) command()     {}
func (ReleaseStock) command()     {}
func (CreateIntent) command()     {}
func (DebitWallet) command()      {}
func (ReverseWallet) command()    {}
func (OpenRefund) command()       {}
func (OpenExchange) command()     {}
func (SetPaymentStatus) command() {}
func (EmitEvent) command()        {}

const (
	RefundSourceCancel  = "cancel"
	RefundSourceReturn  = "return"
	RefundSourcePayment = "payment"
)

// Decision is the outcome of a legal transition.
type Decision struct {
	From     enums.OrderStatus
	Next     enums.OrderStatus
	Commands []Command
}

// Transition is pure: it never touches storage. Illegal (state, event)
// pairs are STATE_CONFLICT, failed guards are VALIDATION_ERROR or CONFLICT.
func Transition(s Snapshot, e Event) (Decision, error) {
	d := Decision{From: s.Status}
	switch e.Kind {
	case EventCreate:
		return create(s, d)

	case EventPaymentVerified:
		if s.Status != enums.OrderStatusInitiated {
			return illegal(s, e)
		}
		if !e.SignatureValid {
			return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "payment signature is invalid")
		}
		if e.PaidAmount > 0 && e.PaidAmount != s.onlineAmount() {
			return Decision{}, pkgerrors.Newf(pkgerrors.CodeValidation, "paid amount %d does not match %d", e.PaidAmount, s.onlineAmount())
		}
		d.Next = enums.OrderStatusConfirmed
		if s.WalletAmountUsed > 0 && !s.WalletDebited {
			d.Commands = append(d.Commands, DebitWallet{Amount: s.WalletAmountUsed})
		}
		d.Commands = append(d.Commands,
			SetPaymentStatus{Status: enums.PaymentStatusPaid},
			EmitEvent{Type: enums.EventOrderConfirmed},
		)
		return d, nil

	case EventReservationFailed, EventPaymentFailed, EventPaymentExpired:
		if s.Status != enums.OrderStatusInitiated {
			return illegal(s, e)
		}
		d.Next = enums.OrderStatusFailed
		d.Commands = append(releaseAll(s),
			SetPaymentStatus{Status: enums.PaymentStatusFailed},
			EmitEvent{Type: enums.EventOrderFailed},
		)
		return d, nil

	case EventConfirmationFailed:
		// The gateway captured the online share but the order could not be
		// confirmed (usually the wallet share bounced). The captured amount
		// is refunded outside the wallet.
		if s.Status != enums.OrderStatusInitiated {
			return illegal(s, e)
		}
		d.Next = enums.OrderStatusFailed
		d.Commands = append(releaseAll(s),
			SetPaymentStatus{Status: enums.PaymentStatusRefunded},
			OpenRefund{Source: RefundSourcePayment, Amount: s.onlineAmount(), Reason: e.Reason, BankDetails: e.BankDetails},
			EmitEvent{Type: enums.EventOrderFailed},
		)
		return d, nil

	case EventCancel:
		switch s.Status {
		case enums.OrderStatusConfirmed, enums.OrderStatusReadyForDispatch, enums.OrderStatusDispatched:
		default:
			return illegal(s, e)
		}
		if strings.TrimSpace(e.Reason) == "" {
			return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required")
		}
		if e.BankDetails == nil || strings.TrimSpace(e.BankDetails.AccountNumber) == "" {
			return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "bank details are required")
		}
		if s.OpenRequest {
			return Decision{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order has an open exchange or return")
		}
		d.Next = enums.OrderStatusCancelled
		d.Commands = releaseAll(s)
		if s.WalletDebited {
			d.Commands = append(d.Commands, ReverseWallet{})
		}
		d.Commands = append(d.Commands,
			OpenRefund{Source: RefundSourceCancel, Amount: s.refundable(), Reason: e.Reason, BankDetails: e.BankDetails},
			EmitEvent{Type: enums.EventOrderCancelled},
		)
		return d, nil

	case EventExchange:
		if s.Status != enums.OrderStatusConfirmed && s.Status != enums.OrderStatusDelivered {
			return illegal(s, e)
		}
		if strings.TrimSpace(e.Reason) == "" {
			return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "exchange reason is required")
		}
		if e.Target == nil || strings.TrimSpace(e.Target.SKUID) == "" {
			return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "exchange target sku is required")
		}
		if s.OpenRequest {
			return Decision{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order already has an open exchange or return")
		}
		if e.Target.Available < 1 {
			return Decision{}, pkgerrors.Newf(pkgerrors.CodeConflict, "sku %s is out of stock", e.Target.SKUID)
		}
		d.Next = s.Status
		d.Commands = []Command{
			OpenExchange{Reason: e.Reason, SpecificReason: e.SpecificReason, Target: e.Target},
			EmitEvent{Type: enums.EventExchangeRequested},
		}
		return d, nil

	case EventReturn:
		if s.Status != enums.OrderStatusConfirmed && s.Status != enums.OrderStatusDelivered {
			return illegal(s, e)
		}
		if strings.TrimSpace(e.Reason) == "" {
			return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "return reason is required")
		}
		if s.OpenRequest {
			return Decision{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order already has an open exchange or return")
		}
		d.Next = s.Status
		if s.Status == enums.OrderStatusDelivered {
			d.Next = enums.OrderStatusReturned
		}
		// The wallet share goes back to the wallet; only money collected
		// outside it is refunded.
		d.Commands = []Command{OpenExchange{IsReturn: true, Reason: e.Reason, SpecificReason: e.SpecificReason}}
		if s.WalletDebited {
			d.Commands = append(d.Commands, ReverseWallet{})
		}
		d.Commands = append(d.Commands,
			OpenRefund{Source: RefundSourceReturn, Amount: s.refundable(), Reason: e.Reason, BankDetails: e.BankDetails},
			EmitEvent{Type: enums.EventReturnRequested},
		)
		return d, nil

	case EventMarkReady:
		return advance(s, e, enums.OrderStatusConfirmed, enums.OrderStatusReadyForDispatch)
	case EventDispatch:
		return advance(s, e, enums.OrderStatusReadyForDispatch, enums.OrderStatusDispatched)
	case EventDeliver:
		return advance(s, e, enums.OrderStatusDispatched, enums.OrderStatusDelivered)
	}
	return Decision{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order event %q", e.Kind)
}

// SettleCancel picks the final status once the release commands have run.
// Stock release failures keep a cancel a full cancel unless the caller asked
// for partial semantics and at least one line did come back.
func SettleCancel(d Decision, released, failed int, allowPartial bool) enums.OrderStatus {
	if d.Next != enums.OrderStatusCancelled {
		return d.Next
	}
	if allowPartial && failed > 0 && released > 0 {
		return enums.OrderStatusPartiallyCancelled
	}
	return enums.OrderStatusCancelled
}

func create(s Snapshot, d Decision) (Decision, error) {
	if s.Status != "" {
		return Decision{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order already exists")
	}
	if len(s.Lines) == 0 {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one line")
	}
	for _, l := range s.Lines {
		if strings.TrimSpace(l.SKUID) == "" || l.Quantity < 1 {
			return Decision{}, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d is invalid", l.Position)
		}
	}
	if s.TotalAmount <= 0 {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}
	if s.WalletAmountUsed < 0 || s.WalletAmountUsed > s.TotalAmount {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "wallet amount must be between 0 and the order total")
	}

	reserve := make([]Command, 0, len(s.Lines))
	for _, l := range s.Lines {
		reserve = append(reserve, ReserveStock{Position: l.Position, SKUID: l.SKUID, Quantity: l.Quantity})
	}

	switch s.PaymentMethod {
	case enums.PaymentMethodCOD:
		d.Next = enums.OrderStatusConfirmed
		d.Commands = append(reserve, SetPaymentStatus{Status: enums.PaymentStatusPending})
		if s.WalletAmountUsed > 0 {
			d.Commands = append(d.Commands, DebitWallet{Amount: s.WalletAmountUsed})
		}
		d.Commands = append(d.Commands, EmitEvent{Type: enums.EventOrderCreated}, EmitEvent{Type: enums.EventOrderConfirmed})
	case enums.PaymentMethodOnline:
		if s.onlineAmount() <= 0 {
			return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "online payment amount must be positive; use wallet-only checkout with cod")
		}
		d.Next = enums.OrderStatusInitiated
		d.Commands = append(reserve,
			CreateIntent{Amount: s.onlineAmount()},
			SetPaymentStatus{Status: enums.PaymentStatusPending},
			EmitEvent{Type: enums.EventOrderCreated},
		)
	default:
		return Decision{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", s.PaymentMethod)
	}
	return d, nil
}

func advance(s Snapshot, e Event, from, to enums.OrderStatus) (Decision, error) {
	if s.Status != from {
		return illegal(s, e)
	}
	return Decision{From: from, Next: to, Commands: []Command{EmitEvent{Type: enums.EventOrderStateChanged}}}, nil
}

func releaseAll(s Snapshot) []Command {
	var cmds []Command
	for _, l := range s.Lines {
		if l.Reserved && !l.Released {
			cmds = append(cmds, ReleaseStock{Position: l.Position, SKUID: l.SKUID, Quantity: l.Quantity})
		}
	}
	return cmds
}

// collected is the money taken outside the wallet: the gateway capture for
// online orders, the cash handed over on delivery for cod.
func (s Snapshot) collected() int64 {
	switch {
	case s.PaymentMethod == enums.PaymentMethodOnline && s.PaymentStatus == enums.PaymentStatusPaid:
		return s.onlineAmount()
	case s.PaymentMethod == enums.PaymentMethodCOD && s.Status == enums.OrderStatusDelivered:
		return s.onlineAmount()
	}
	return 0
}

// refundable is collected money not yet promised back by an earlier refund.
func (s Snapshot) refundable() int64 {
	if left := s.collected() - s.RefundedAmount; left > 0 {
		return left
	}
	return 0
}

func illegal(s Snapshot, e Event) (Decision, error) {
	state := string(s.Status)
	if state == "" {
		state = "none"
	}
	return Decision{}, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot %s an order in state %s", strings.ReplaceAll(string(e.Kind), "_", " "), state)
}
