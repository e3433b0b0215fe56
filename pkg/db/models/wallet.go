package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learningsainttech/nanocart-backend/pkg/enums"
)

// Wallet holds the running balance for one account.
type Wallet struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	AccountID    uuid.UUID         `gorm:"column:account_id;type:uuid;not null;uniqueIndex:ux_wallets_account_id"`
	AccountKind  enums.AccountKind `gorm:"column:account_kind;type:text;not null"`
	TotalBalance int64             `gorm:"column:total_balance;not null;default:0"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallets" }

func (w *Wallet) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

// WalletTransaction is an append-only ledger entry.
//
// DebitKey is the order ref on debits and NULL otherwise; together with
// WalletID it makes a second debit for the same order a constraint error.
// ReversalOf links a reversal credit to the debit it undoes.
type WalletTransaction struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	WalletID    uuid.UUID             `gorm:"column:wallet_id;type:uuid;not null;uniqueIndex:ux_wallet_txn_debit_key,priority:1;index:ix_wallet_txn_wallet_created,priority:1"`
	Type        enums.WalletTxnType   `gorm:"column:type;type:text;not null"`
	Amount      int64                 `gorm:"column:amount;not null"`
	Description string                `gorm:"column:description;not null"`
	OrderRef    *string               `gorm:"column:order_ref;index"`
	Status      enums.WalletTxnStatus `gorm:"column:status;type:text;not null"`
	DebitKey    *string               `gorm:"column:debit_key;uniqueIndex:ux_wallet_txn_debit_key,priority:2"`
	ReversalOf  *uuid.UUID            `gorm:"column:reversal_of;type:uuid;uniqueIndex:ux_wallet_txn_reversal_of"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime;index:ix_wallet_txn_wallet_created,priority:2"`
}

func (WalletTransaction) TableName() string { return "wallet_transactions" }

func (t *WalletTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
