package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

func newRepository(db *gorm.DB) *repository {
	return &repository{db: db}
}

func (r *repository) findWallet(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *repository) createWallet(ctx context.Context, w *models.Wallet) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *repository) findDebit(ctx context.Context, walletID uuid.UUID, orderRef string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND debit_key = ?", walletID, orderRef).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) findReversal(ctx context.Context, debitID uuid.UUID) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	if err := r.db.WithContext(ctx).Where("reversal_of = ?", debitID).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// decrement subtracts amount only when the balance covers it.
func (r *repository) decrement(ctx context.Context, walletID uuid.UUID, amount int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ? AND total_balance >= ?", walletID, amount).
		Update("total_balance", gorm.Expr("total_balance - ?", amount))
	return res.RowsAffected == 1, res.Error
}

func (r *repository) increment(ctx context.Context, walletID uuid.UUID, amount int64) error {
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Update("total_balance", gorm.Expr("total_balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) insertTxn(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) balance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var w models.Wallet
	if err := r.db.WithContext(ctx).Select("total_balance").Where("id = ?", walletID).First(&w).Error; err != nil {
		return 0, err
	}
	return w.TotalBalance, nil
}

func (r *repository) listTxns(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, error) {
	q, err := pagination.Apply(r.db.WithContext(ctx).Where("wallet_id = ?", walletID), params)
	if err != nil {
		return nil, err
	}
	var rows []models.WalletTransaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
