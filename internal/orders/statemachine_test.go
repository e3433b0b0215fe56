package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
)

var bank = &models.BankDetails{AccountHolder: "A", AccountNumber: "123", IFSC: "X0001"}

func lines() []Line {
	return []Line{
		{Position: 0, SKUID: "a", Quantity: 2},
		{Position: 1, SKUID: "b", Quantity: 1},
	}
}

func reservedLines() []Line {
	ls := lines()
	for i := range ls {
		ls[i].Reserved = true
	}
	return ls
}

func TestCreateCOD(t *testing.T) {
	d, err := Transition(Snapshot{PaymentMethod: enums.PaymentMethodCOD, TotalAmount: 1000, WalletAmountUsed: 300, Lines: lines()}, Event{Kind: EventCreate})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, d.Next)
	assert.Equal(t, []Command{
		ReserveStock{Position: 0, SKUID: "a", Quantity: 2},
		ReserveStock{Position: 1, SKUID: "b", Quantity: 1},
		SetPaymentStatus{Status: enums.PaymentStatusPending},
		DebitWallet{Amount: 300},
		EmitEvent{Type: enums.EventOrderCreated},
		EmitEvent{Type: enums.EventOrderConfirmed},
	}, d.Commands)
}

func TestCreateOnline(t *testing.T) {
	d, err := Transition(Snapshot{PaymentMethod: enums.PaymentMethodOnline, TotalAmount: 1000, WalletAmountUsed: 300, Lines: lines()}, Event{Kind: EventCreate})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusInitiated, d.Next)
	assert.Contains(t, d.Commands, CreateIntent{Amount: 700})
	for _, c := range d.Commands {
		_, isDebit := c.(DebitWallet)
		assert.False(t, isDebit, "online checkout debits the wallet only after payment")
	}
}

func TestCreateGuards(t *testing.T) {
	tests := map[string]Snapshot{
		"no lines":            {PaymentMethod: enums.PaymentMethodCOD, TotalAmount: 10},
		"zero quantity":       {PaymentMethod: enums.PaymentMethodCOD, TotalAmount: 10, Lines: []Line{{SKUID: "a"}}},
		"wallet over total":   {PaymentMethod: enums.PaymentMethodCOD, TotalAmount: 10, WalletAmountUsed: 11, Lines: lines()},
		"online fully wallet": {PaymentMethod: enums.PaymentMethodOnline, TotalAmount: 10, WalletAmountUsed: 10, Lines: lines()},
		"bad method":          {PaymentMethod: "cheque", TotalAmount: 10, Lines: lines()},
	}
	for name, snap := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Transition(snap, Event{Kind: EventCreate})
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
		})
	}

	_, err := Transition(Snapshot{Status: enums.OrderStatusConfirmed}, Event{Kind: EventCreate})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestPaymentVerified(t *testing.T) {
	snap := Snapshot{Status: enums.OrderStatusInitiated, PaymentMethod: enums.PaymentMethodOnline, TotalAmount: 1000, WalletAmountUsed: 300, Lines: reservedLines()}

	d, err := Transition(snap, Event{Kind: EventPaymentVerified, SignatureValid: true, PaidAmount: 700})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, d.Next)
	assert.Equal(t, DebitWallet{Amount: 300}, d.Commands[0])
	assert.Contains(t, d.Commands, SetPaymentStatus{Status: enums.PaymentStatusPaid})

	_, err = Transition(snap, Event{Kind: EventPaymentVerified, SignatureValid: false})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = Transition(snap, Event{Kind: EventPaymentVerified, SignatureValid: true, PaidAmount: 1000})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	snap.Status = enums.OrderStatusConfirmed
	_, err = Transition(snap, Event{Kind: EventPaymentVerified, SignatureValid: true})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestPaymentFailedReleasesOnlyHeldStock(t *testing.T) {
	ls := reservedLines()
	ls[1].Released = true
	d, err := Transition(Snapshot{Status: enums.OrderStatusInitiated, Lines: ls}, Event{Kind: EventPaymentExpired})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFailed, d.Next)
	assert.Equal(t, []Command{
		ReleaseStock{Position: 0, SKUID: "a", Quantity: 2},
		SetPaymentStatus{Status: enums.PaymentStatusFailed},
		EmitEvent{Type: enums.EventOrderFailed},
	}, d.Commands)
}

func TestCancel(t *testing.T) {
	for _, from := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusReadyForDispatch, enums.OrderStatusDispatched} {
		snap := Snapshot{
			Status: from, PaymentMethod: enums.PaymentMethodOnline, PaymentStatus: enums.PaymentStatusPaid,
			TotalAmount: 1000, WalletAmountUsed: 300, WalletDebited: true, Lines: reservedLines(),
		}
		d, err := Transition(snap, Event{Kind: EventCancel, Reason: "changed mind", BankDetails: bank})
		require.NoError(t, err, from)
		assert.Equal(t, enums.OrderStatusCancelled, d.Next)
		assert.Contains(t, d.Commands, ReverseWallet{})
		assert.Contains(t, d.Commands, OpenRefund{Source: RefundSourceCancel, Amount: 700, Reason: "changed mind", BankDetails: bank})
		assert.Contains(t, d.Commands, ReleaseStock{Position: 1, SKUID: "b", Quantity: 1})
	}

	for _, from := range []enums.OrderStatus{enums.OrderStatusInitiated, enums.OrderStatusDelivered, enums.OrderStatusCancelled, enums.OrderStatusFailed} {
		_, err := Transition(Snapshot{Status: from}, Event{Kind: EventCancel, Reason: "x", BankDetails: bank})
		assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err), from)
	}

	_, err := Transition(Snapshot{Status: enums.OrderStatusConfirmed}, Event{Kind: EventCancel, BankDetails: bank})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	_, err = Transition(Snapshot{Status: enums.OrderStatusConfirmed}, Event{Kind: EventCancel, Reason: "x"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCancelWithoutDebitSkipsReversal(t *testing.T) {
	d, err := Transition(Snapshot{Status: enums.OrderStatusConfirmed, PaymentMethod: enums.PaymentMethodCOD, PaymentStatus: enums.PaymentStatusPending, TotalAmount: 500, Lines: reservedLines()},
		Event{Kind: EventCancel, Reason: "x", BankDetails: bank})
	require.NoError(t, err)
	assert.NotContains(t, d.Commands, ReverseWallet{})
	assert.Contains(t, d.Commands, OpenRefund{Source: RefundSourceCancel, Amount: 0, Reason: "x", BankDetails: bank})
}

func TestSettleCancel(t *testing.T) {
	d := Decision{Next: enums.OrderStatusCancelled}
	assert.Equal(t, enums.OrderStatusCancelled, SettleCancel(d, 1, 1, false))
	assert.Equal(t, enums.OrderStatusPartiallyCancelled, SettleCancel(d, 1, 1, true))
	assert.Equal(t, enums.OrderStatusCancelled, SettleCancel(d, 0, 2, true))
	assert.Equal(t, enums.OrderStatusCancelled, SettleCancel(d, 2, 0, true))
}

func TestExchange(t *testing.T) {
	target := &ExchangeTarget{SKUID: "c", Color: "blue", Size: "L", Available: 1}
	d, err := Transition(Snapshot{Status: enums.OrderStatusDelivered}, Event{Kind: EventExchange, Reason: "size", Target: target})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, d.Next)
	assert.Equal(t, OpenExchange{Reason: "size", Target: target}, d.Commands[0])

	_, err = Transition(Snapshot{Status: enums.OrderStatusConfirmed}, Event{Kind: EventExchange, Reason: "size", Target: &ExchangeTarget{SKUID: "c"}})
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	_, err = Transition(Snapshot{Status: enums.OrderStatusDispatched}, Event{Kind: EventExchange, Reason: "size", Target: target})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestReturn(t *testing.T) {
	delivered := Snapshot{Status: enums.OrderStatusDelivered, PaymentMethod: enums.PaymentMethodCOD, PaymentStatus: enums.PaymentStatusPending, TotalAmount: 900}
	d, err := Transition(delivered, Event{Kind: EventReturn, Reason: "damaged", BankDetails: bank})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReturned, d.Next)
	assert.Contains(t, d.Commands, OpenRefund{Source: RefundSourceReturn, Amount: 900, Reason: "damaged", BankDetails: bank})
	assert.NotContains(t, d.Commands, ReverseWallet{})

	d, err = Transition(Snapshot{Status: enums.OrderStatusConfirmed, PaymentMethod: enums.PaymentMethodCOD, PaymentStatus: enums.PaymentStatusPending, TotalAmount: 900}, Event{Kind: EventReturn, Reason: "damaged"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, d.Next)
	assert.Contains(t, d.Commands, OpenRefund{Source: RefundSourceReturn, Amount: 0, Reason: "damaged"}, "undelivered cod collected nothing")

	_, err = Transition(Snapshot{Status: enums.OrderStatusReturned}, Event{Kind: EventReturn, Reason: "again"})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestOperatorAdvances(t *testing.T) {
	path := []struct {
		from enums.OrderStatus
		kind EventKind
		to   enums.OrderStatus
	}{
		{enums.OrderStatusConfirmed, EventMarkReady, enums.OrderStatusReadyForDispatch},
		{enums.OrderStatusReadyForDispatch, EventDispatch, enums.OrderStatusDispatched},
		{enums.OrderStatusDispatched, EventDeliver, enums.OrderStatusDelivered},
	}
	for _, step := range path {
		d, err := Transition(Snapshot{Status: step.from}, Event{Kind: step.kind})
		require.NoError(t, err)
		assert.Equal(t, step.to, d.Next)
		assert.Equal(t, []Command{EmitEvent{Type: enums.EventOrderStateChanged}}, d.Commands)
	}

	_, err := Transition(Snapshot{Status: enums.OrderStatusConfirmed}, Event{Kind: EventDeliver})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	_, err = Transition(Snapshot{Status: enums.OrderStatusConfirmed}, Event{Kind: "teleport"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	events := []EventKind{EventPaymentVerified, EventPaymentFailed, EventCancel, EventExchange, EventReturn, EventMarkReady, EventDispatch, EventDeliver}
	for _, status := range []enums.OrderStatus{enums.OrderStatusCancelled, enums.OrderStatusFailed, enums.OrderStatusReturned} {
		for _, kind := range events {
			_, err := Transition(Snapshot{Status: status}, Event{Kind: kind, Reason: "r", BankDetails: bank, SignatureValid: true, Target: &ExchangeTarget{SKUID: "x", Available: 5}})
			assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err), "%s on %s", kind, status)
		}
	}
}

func TestConfirmationFailedRefundsCapturedShare(t *testing.T) {
	s := Snapshot{
		Status:           enums.OrderStatusInitiated,
		PaymentMethod:    enums.PaymentMethodOnline,
		PaymentStatus:    enums.PaymentStatusPending,
		TotalAmount:      1000,
		WalletAmountUsed: 400,
		Lines:            reservedLines(),
	}
	d, err := Transition(s, Event{Kind: EventConfirmationFailed, Reason: "wallet debit failed"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFailed, d.Next)
	assert.Contains(t, d.Commands, Command(OpenRefund{Source: RefundSourcePayment, Amount: 600, Reason: "wallet debit failed"}))
	assert.Contains(t, d.Commands, Command(SetPaymentStatus{Status: enums.PaymentStatusRefunded}))

	_, err = Transition(Snapshot{Status: enums.OrderStatusConfirmed}, Event{Kind: EventConfirmationFailed})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestReservationFailedMatchesPaymentFailure(t *testing.T) {
	s := Snapshot{Status: enums.OrderStatusInitiated, PaymentMethod: enums.PaymentMethodCOD, Lines: []Line{
		{Position: 0, SKUID: "a", Quantity: 2, Reserved: true},
		{Position: 1, SKUID: "b", Quantity: 1},
	}}
	d, err := Transition(s, Event{Kind: EventReservationFailed})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFailed, d.Next)
	assert.Equal(t, ReleaseStock{Position: 0, SKUID: "a", Quantity: 2}, d.Commands[0])
}

func TestReturnSplitsWalletAndCollectedShare(t *testing.T) {
	paid := Snapshot{
		Status: enums.OrderStatusConfirmed, PaymentMethod: enums.PaymentMethodOnline, PaymentStatus: enums.PaymentStatusPaid,
		TotalAmount: 1000, WalletAmountUsed: 300, WalletDebited: true,
	}
	d, err := Transition(paid, Event{Kind: EventReturn, Reason: "defect", BankDetails: bank})
	require.NoError(t, err)
	assert.Contains(t, d.Commands, ReverseWallet{})
	assert.Contains(t, d.Commands, OpenRefund{Source: RefundSourceReturn, Amount: 700, Reason: "defect", BankDetails: bank})

	paid.RefundedAmount = 700
	d, err = Transition(paid, Event{Kind: EventCancel, Reason: "x", BankDetails: bank})
	require.NoError(t, err)
	assert.Contains(t, d.Commands, OpenRefund{Source: RefundSourceCancel, Amount: 0, Reason: "x", BankDetails: bank}, "refunds are netted")
}

func TestOpenRequestBlocksFurtherRequests(t *testing.T) {
	snap := Snapshot{Status: enums.OrderStatusConfirmed, PaymentMethod: enums.PaymentMethodCOD, TotalAmount: 500, OpenRequest: true, Lines: reservedLines()}
	target := &ExchangeTarget{SKUID: "c", Available: 1}

	_, err := Transition(snap, Event{Kind: EventReturn, Reason: "again"})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	_, err = Transition(snap, Event{Kind: EventExchange, Reason: "again", Target: target})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	_, err = Transition(snap, Event{Kind: EventCancel, Reason: "x", BankDetails: bank})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestSnapshotOfTracksRequestsAndRefunds(t *testing.T) {
	o := &models.Order{
		OrderStatus: enums.OrderStatusDelivered,
		Refunds: []models.OrderRefund{
			{Amount: 400, Status: enums.RefundStatusInitiated},
			{Amount: 250, Status: enums.RefundStatusRejected},
		},
		Exchanges: []models.OrderExchange{{Status: enums.ExchangeStatusRejected}},
	}
	snap := SnapshotOf(o)
	assert.EqualValues(t, 400, snap.RefundedAmount)
	assert.False(t, snap.OpenRequest)

	o.Exchanges = append(o.Exchanges, models.OrderExchange{Status: enums.ExchangeStatusPending, IsReturn: true})
	assert.True(t, SnapshotOf(o).OpenRequest)
}
