package wallet

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/pkg/db"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox/payloads"
	"github.com/learningsainttech/nanocart-backend/pkg/pagination"
	"github.com/learningsainttech/nanocart-backend/pkg/types"
)

var (
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrAlreadyReversed   = errors.New("debit already reversed")
	ErrDebitNotFound     = errors.New("no debit for order")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWalletExists      = errors.New("wallet already exists")

	errDuplicateDebit = errors.New("concurrent debit for order")
)

const (
	debitKeyConstraint      = "ux_wallet_txn_debit_key"
	reversalOfConstraint    = "ux_wallet_txn_reversal_of"
	accountUniqueConstraint = "ux_wallets_account_id"
)

// Ledger is the wallet service. Balance changes and their ledger rows are
// written in one transaction, and each balance check-and-write is a single
// conditional UPDATE so concurrent debits on one account cannot overdraw.
type Ledger struct {
	db     *gorm.DB
	outbox outbox.Emitter
	logg   *logger.Logger
}

func NewLedger(conn *gorm.DB, emitter outbox.Emitter, logg *logger.Logger) *Ledger {
	return &Ledger{db: conn, outbox: emitter, logg: logg}
}

func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	if tx == nil {
		return l
	}
	return &Ledger{db: tx, outbox: l.outbox, logg: l.logg}
}

func (l *Ledger) Create(ctx context.Context, accountID uuid.UUID, kind enums.AccountKind) (*models.Wallet, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid account kind %q", kind)
	}
	w := &models.Wallet{AccountID: accountID, AccountKind: kind}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return newRepository(tx).createWallet(ctx, w)
	})
	if err != nil {
		if db.IsUniqueViolation(err, accountUniqueConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, ErrWalletExists, "wallet already exists for account")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	return w, nil
}

func (l *Ledger) Get(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error) {
	w, err := newRepository(l.db).findWallet(ctx, accountID)
	if err != nil {
		return nil, walletLookupError(err)
	}
	return w, nil
}

func (l *Ledger) Credit(ctx context.Context, accountID uuid.UUID, amount int64, description string, orderRef *string) (*models.WalletTransaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	var txn *models.WalletTransaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := newRepository(tx)
		w, err := repo.findWallet(ctx, accountID)
		if err != nil {
			return walletLookupError(err)
		}
		if err := repo.increment(ctx, w.ID, amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit wallet")
		}
		txn = &models.WalletTransaction{
			WalletID:    w.ID,
			Type:        enums.WalletTxnCredit,
			Amount:      amount,
			Description: describe(description, "wallet credit"),
			OrderRef:    orderRef,
			Status:      enums.WalletTxnStatusCompleted,
		}
		if err := repo.insertTxn(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record credit")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Debit takes amount for orderRef. A debit already recorded for the same
// order is returned unchanged and the balance is not touched again.
func (l *Ledger) Debit(ctx context.Context, accountID uuid.UUID, amount int64, description, orderRef string) (*models.WalletTransaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(orderRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ref is required for a debit")
	}

	txn, err := l.debitOnce(ctx, accountID, amount, description, orderRef)
	if errors.Is(err, errDuplicateDebit) {
		// Lost the race on the unique debit key; the winner's row is the answer.
		w, werr := l.Get(ctx, accountID)
		if werr != nil {
			return nil, werr
		}
		existing, ferr := newRepository(l.db).findDebit(ctx, w.ID, orderRef)
		if ferr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "load existing debit")
		}
		return existing, nil
	}
	return txn, err
}

func (l *Ledger) debitOnce(ctx context.Context, accountID uuid.UUID, amount int64, description, orderRef string) (*models.WalletTransaction, error) {
	var txn *models.WalletTransaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := newRepository(tx)
		w, err := repo.findWallet(ctx, accountID)
		if err != nil {
			return walletLookupError(err)
		}

		existing, err := repo.findDebit(ctx, w.ID, orderRef)
		if err == nil {
			txn = existing
			return nil
		}
		if !isNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup debit")
		}

		ok, err := repo.decrement(ctx, w.ID, amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit wallet")
		}
		if !ok {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrInsufficientFunds, "insufficient wallet balance")
		}

		ref := orderRef
		txn = &models.WalletTransaction{
			WalletID:    w.ID,
			Type:        enums.WalletTxnDebit,
			Amount:      amount,
			Description: describe(description, "order payment"),
			OrderRef:    &ref,
			DebitKey:    &ref,
			Status:      enums.WalletTxnStatusCompleted,
		}
		if err := repo.insertTxn(ctx, txn); err != nil {
			if db.IsUniqueViolation(err, debitKeyConstraint) {
				return errDuplicateDebit
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record debit")
		}
		return l.emit(ctx, tx, enums.EventWalletDebited, w, txn, amount)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Reverse credits back the debit recorded for orderRef. The reversal row
// references the debit, so a second reversal is rejected by the unique key
// even when two callers race past the lookup.
func (l *Ledger) Reverse(ctx context.Context, accountID uuid.UUID, orderRef string) (*models.WalletTransaction, error) {
	if strings.TrimSpace(orderRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ref is required")
	}
	var reversal *models.WalletTransaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := newRepository(tx)
		w, err := repo.findWallet(ctx, accountID)
		if err != nil {
			return walletLookupError(err)
		}
		debit, err := repo.findDebit(ctx, w.ID, orderRef)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrDebitNotFound, "no wallet debit for order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup debit")
		}
		if _, err := repo.findReversal(ctx, debit.ID); err == nil {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrAlreadyReversed, "wallet debit already reversed")
		} else if !isNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup reversal")
		}

		ref := orderRef
		debitID := debit.ID
		reversal = &models.WalletTransaction{
			WalletID:    w.ID,
			Type:        enums.WalletTxnCredit,
			Amount:      debit.Amount,
			Description: "reversal of order payment",
			OrderRef:    &ref,
			ReversalOf:  &debitID,
			Status:      enums.WalletTxnStatusCompleted,
		}
		if err := repo.insertTxn(ctx, reversal); err != nil {
			if db.IsUniqueViolation(err, reversalOfConstraint) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrAlreadyReversed, "wallet debit already reversed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reversal")
		}
		if err := repo.increment(ctx, w.ID, debit.Amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit reversal")
		}
		return l.emit(ctx, tx, enums.EventWalletReversed, w, reversal, debit.Amount)
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

func (l *Ledger) ListTransactions(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*types.Page[models.WalletTransaction], error) {
	repo := newRepository(l.db)
	w, err := repo.findWallet(ctx, accountID)
	if err != nil {
		return nil, walletLookupError(err)
	}
	rows, err := repo.listTxns(ctx, w.ID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list wallet transactions")
	}
	items, next := pagination.Trim(rows, params.Limit, func(t models.WalletTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return &types.Page[models.WalletTransaction]{Items: items, NextCursor: next}, nil
}

func (l *Ledger) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, w *models.Wallet, txn *models.WalletTransaction, amount int64) error {
	if l.outbox == nil {
		return nil
	}
	balance, err := newRepository(tx).balance(ctx, w.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	orderRef := ""
	if txn.OrderRef != nil {
		orderRef = *txn.OrderRef
	}
	return l.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateWallet,
		AggregateID:   w.ID.String(),
		Actor:         &outbox.ActorRef{AccountID: w.AccountID.String(), Role: string(enums.RoleCustomer)},
		Data: payloads.WalletEvent{
			WalletID:      w.ID.String(),
			AccountID:     w.AccountID.String(),
			OrderRef:      orderRef,
			Amount:        amount,
			TransactionID: txn.ID.String(),
			Balance:       balance,
		},
	})
}

func walletLookupError(err error) error {
	if isNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrWalletNotFound, "wallet not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}

func describe(description, fallback string) string {
	if d := strings.TrimSpace(description); d != "" {
		return d
	}
	return fallback
}
