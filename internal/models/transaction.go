package models

import "time"

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionEarned TransactionType = "Earned"
	TransactionSpent  TransactionType = "Spent"
	TransactionFine   TransactionType = "Fine"
)

// Valid reports whether the type is one of the known values.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionEarned, TransactionSpent, TransactionFine:
		return true
	}
	return false
}

// Transaction is an append-only audit record of a balance mutation.
// Rows are written in the same database transaction as the mutation they
// describe, so ledger and balance cannot disagree.
type Transaction struct {
	ID          string          `db:"id" json:"id"`
	StudentID   string          `db:"student_id" json:"student_id"`
	Type        TransactionType `db:"type" json:"type"`
	Amount      int             `db:"amount" json:"amount"`
	Description string          `db:"description" json:"description"`
	OccurredAt  time.Time       `db:"occurred_at" json:"occurred_at"`
}
