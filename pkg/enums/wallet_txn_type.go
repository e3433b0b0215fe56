package enums

import "fmt"

// WalletTxnType is the direction of a wallet ledger entry.
type WalletTxnType string

const (
	WalletTxnCredit WalletTxnType = "credit"
	WalletTxnDebit  WalletTxnType = "debit"
)

var validWalletTxnTypes = []WalletTxnType{
	WalletTxnCredit,
	WalletTxnDebit,
}

// String implements fmt.Stringer.
func (w WalletTxnType) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletTxnType.
func (w WalletTxnType) IsValid() bool {
	for _, candidate := range validWalletTxnTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletTxnType converts raw input into a WalletTxnType.
func ParseWalletTxnType(value string) (WalletTxnType, error) {
	for _, candidate := range validWalletTxnTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}
