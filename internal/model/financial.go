package model

import (
	"strings"
	"time"
)

// Transaction types.
const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

// Transaction statuses.
const (
	TransactionPaid    = "paid"
	TransactionPending = "pending"
	TransactionOverdue = "overdue"
)

// FinancialRecord is an income or expense line on a project.
type FinancialRecord struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Category    string     `json:"category"`
	TenantID    *string    `json:"tenant_id,omitempty"`
}

// Signed returns the amount with expenses negated.
func (r FinancialRecord) Signed() float64 {
	if r.Type == TransactionExpense {
		return -r.Amount
	}
	return r.Amount
}

// DecodeFinancialRecord decodes a financial record. Amount and a known
// transaction type are required.
func DecodeFinancialRecord(id string, f Fields) (FinancialRecord, error) {
	r := newReader(SubcollectionFinancials, id, f)
	rec := FinancialRecord{
		ID:          id,
		ProjectID:   r.str("projectId"),
		Date:        r.optTime("date"),
		Description: r.str("description"),
		Amount:      r.requiredFloat("amount"),
		Status:      strings.ToLower(r.str("status")),
		Category:    r.str("category"),
		TenantID:    r.optString("tenantId"),
	}
	switch t := strings.ToLower(r.requiredString("type")); t {
	case TransactionIncome, TransactionExpense:
		rec.Type = t
	case "":
	default:
		r.fail("type", "is not income or expense")
	}
	return rec, r.done()
}

// EncodeFinancialRecord returns the canonical field map for a record.
func EncodeFinancialRecord(rec FinancialRecord) Fields {
	e := encoder{"id": rec.ID, "amount": rec.Amount}
	e.str("projectId", rec.ProjectID)
	e.optTimestamp("date", rec.Date)
	e.str("description", rec.Description)
	e.str("type", rec.Type)
	e.str("status", rec.Status)
	e.str("category", rec.Category)
	e.optStr("tenantId", rec.TenantID)
	return Fields(e)
}

// Totals sums income and expenses.
func Totals(records []FinancialRecord) (income, expense float64) {
	for _, r := range records {
		switch r.Type {
		case TransactionIncome:
			income += r.Amount
		case TransactionExpense:
			expense += r.Amount
		}
	}
	return income, expense
}
