package enums

// WalletTxnStatus is the settlement state of a ledger row. Rows are
// append-only, so a reversal is a new credit rather than a status change.
type WalletTxnStatus string

const WalletTxnStatusCompleted WalletTxnStatus = "completed"

func (w WalletTxnStatus) IsValid() bool {
	return w == WalletTxnStatusCompleted
}
