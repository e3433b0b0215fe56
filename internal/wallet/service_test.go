package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/pkg/db/dbtest"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
	"github.com/learningsainttech/nanocart-backend/pkg/outbox"
	"github.com/learningsainttech/nanocart-backend/pkg/pagination"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type fixture struct {
	ledger    *Ledger
	conn      *gorm.DB
	emitter   *recordingEmitter
	accountID uuid.UUID
	walletID  uuid.UUID
}

func newFixture(t *testing.T, balance int64) fixture {
	t.Helper()
	conn := dbtest.Open(t, &models.Wallet{}, &models.WalletTransaction{})
	emitter := &recordingEmitter{}
	ledger := NewLedger(conn, emitter, logger.Nop())
	accountID := uuid.New()
	w, err := ledger.Create(context.Background(), accountID, enums.AccountKindUser)
	require.NoError(t, err)
	if balance > 0 {
		_, err = ledger.Credit(context.Background(), accountID, balance, "top-up", nil)
		require.NoError(t, err)
	}
	return fixture{ledger: ledger, conn: conn, emitter: emitter, accountID: accountID, walletID: w.ID}
}

func (f fixture) balance(t *testing.T) int64 {
	t.Helper()
	w, err := f.ledger.Get(context.Background(), f.accountID)
	require.NoError(t, err)
	sum, err := newRepository(f.conn).ledgerSum(context.Background(), f.walletID)
	require.NoError(t, err)
	require.Equal(t, sum, w.TotalBalance, "balance must equal credits minus debits")
	return w.TotalBalance
}

// ledgerSum recomputes credits minus debits from the transaction rows.
func (r *repository) ledgerSum(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var sum struct{ Total int64 }
	err := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0) AS total", enums.WalletTxnCredit).
		Where("wallet_id = ?", walletID).
		Scan(&sum).Error
	return sum.Total, err
}

func TestCreateIsUniquePerAccount(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.ledger.Create(context.Background(), f.accountID, enums.AccountKindUser)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.True(t, errors.Is(err, ErrWalletExists))

	var count int64
	require.NoError(t, f.conn.Model(&models.Wallet{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	_, err = f.ledger.Create(context.Background(), uuid.New(), "robot")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDebitIsIdempotentPerOrder(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()

	first, err := f.ledger.Debit(ctx, f.accountID, 300, "", "ORD-1")
	require.NoError(t, err)
	second, err := f.ledger.Debit(ctx, f.accountID, 300, "", "ORD-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 200, f.balance(t))

	debits := 0
	for _, e := range f.emitter.events {
		if e.EventType == enums.EventWalletDebited {
			debits++
		}
	}
	assert.Equal(t, 1, debits)
}

func TestDebitRejectsInsufficientFunds(t *testing.T) {
	f := newFixture(t, 100)
	_, err := f.ledger.Debit(context.Background(), f.accountID, 101, "", "ORD-1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.EqualValues(t, 100, f.balance(t))
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.ledger.Debit(ctx, f.accountID, 300, "", "ORD-"+string(rune('a'+i)))
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 100, f.balance(t))
}

func TestConcurrentDebitsForOneOrderApplyOnce(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	ids := make([]uuid.UUID, 8)
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			txn, err := f.ledger.Debit(ctx, f.accountID, 300, "", "ORD-1")
			errs[i] = err
			if txn != nil {
				ids[i] = txn.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	var count int64
	require.NoError(t, f.conn.Model(&models.WalletTransaction{}).Where("type = ?", enums.WalletTxnDebit).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.EqualValues(t, 700, f.balance(t))
}

func TestReverseRestoresExactAmountOnce(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()

	debit, err := f.ledger.Debit(ctx, f.accountID, 300, "", "ORD-1")
	require.NoError(t, err)

	reversal, err := f.ledger.Reverse(ctx, f.accountID, "ORD-1")
	require.NoError(t, err)
	require.NotNil(t, reversal.ReversalOf)
	assert.Equal(t, debit.ID, *reversal.ReversalOf)
	assert.Equal(t, debit.Amount, reversal.Amount)
	assert.EqualValues(t, 500, f.balance(t))

	_, err = f.ledger.Reverse(ctx, f.accountID, "ORD-1")
	assert.True(t, errors.Is(err, ErrAlreadyReversed))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.EqualValues(t, 500, f.balance(t))

	_, err = f.ledger.Reverse(ctx, f.accountID, "ORD-404")
	assert.True(t, errors.Is(err, ErrDebitNotFound))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDebitAfterReverseReturnsOriginal(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()

	_, err := f.ledger.Debit(ctx, f.accountID, 200, "", "ORD-1")
	require.NoError(t, err)
	_, err = f.ledger.Reverse(ctx, f.accountID, "ORD-1")
	require.NoError(t, err)

	_, err = f.ledger.Debit(ctx, f.accountID, 200, "", "ORD-1")
	require.NoError(t, err)
	assert.EqualValues(t, 500, f.balance(t))
}

func TestDebitInsideCallerTransaction(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()

	err := f.conn.Transaction(func(tx *gorm.DB) error {
		if _, err := f.ledger.WithTx(tx).Debit(ctx, f.accountID, 100, "", "ORD-1"); err != nil {
			return err
		}
		return errors.New("rollback")
	})
	require.Error(t, err)
	assert.EqualValues(t, 500, f.balance(t))
}

func TestListTransactionsPaginates(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := f.ledger.Credit(ctx, f.accountID, int64(10+i), "", nil)
		require.NoError(t, err)
	}

	page, err := f.ledger.ListTransactions(ctx, f.accountID, pagination.Params{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	require.NotEmpty(t, page.NextCursor)

	rest, err := f.ledger.ListTransactions(ctx, f.accountID, pagination.Params{Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 2)
	assert.Empty(t, rest.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, txn := range append(page.Items, rest.Items...) {
		assert.False(t, seen[txn.ID])
		seen[txn.ID] = true
	}

	_, err = f.ledger.ListTransactions(ctx, uuid.New(), pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
