package models

// All lists every persisted model, in dependency order, for dev auto-migration and tests.
func All() []any {
	return []any{
		&CatalogVariant{},
		&StockCounter{},
		&Order{},
		&OrderLineItem{},
		&OrderRefund{},
		&OrderExchange{},
		&OrderCancellation{},
		&Wallet{},
		&WalletTransaction{},
		&CompensationFailure{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
