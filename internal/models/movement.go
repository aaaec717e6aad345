package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Movement is one immutable row of the ledger. Amount is signed:
// negative = debit, positive = credit.
type Movement struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        MovementKind    `json:"kind"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

type MovementKind string

const (
	KindTopUp           MovementKind = "top_up"
	KindPurchase        MovementKind = "purchase"
	KindCreditFromSale  MovementKind = "credit_from_sale"
	KindDebitAdjustment MovementKind = "debit_adjustment"
)

// TransferResult describes one committed atomic transfer: both movements and
// the sender's balance after the debit.
type TransferResult struct {
	FromUserID       int64           `json:"from_user_id"`
	ToUserID         int64           `json:"to_user_id"`
	Amount           decimal.Decimal `json:"amount"`
	SenderBalance    decimal.Decimal `json:"sender_balance"`
	DebitMovementID  int64           `json:"debit_movement_id"`
	CreditMovementID int64           `json:"credit_movement_id"`
}
