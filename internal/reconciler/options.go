package reconciler

import (
	"strings"

	"settlement-reconciler/internal/models"
)

// Options configures one reconciliation run.
type Options struct {
	// OrderType selects the fund and freeze accounts: models.OrderTypeCOD or
	// models.OrderTypeElectronic.
	OrderType string
	// ExpenseCategories are amount descriptions folded into the order's
	// principal line instead of being journaled on their own.
	ExpenseCategories []string

	Company     string
	Supplier    string
	CostCenter  string
	ContraGSTIN string
	Series      string
}

func DefaultOptions() Options {
	return Options{
		OrderType:   models.OrderTypeCOD,
		Company:     "Thakker Mercantile Private Limited",
		Supplier:    "Amazon Seller Services Private Limited",
		CostCenter:  "6 - Retail - TMPL",
		ContraGSTIN: "27AACCT1557E1ZH",
		Series:      "ACC-JV-.YYYY.-",
	}
}

func (o Options) Validate() error {
	switch o.OrderType {
	case models.OrderTypeCOD, models.OrderTypeElectronic:
		return nil
	}
	return ErrInvalidOrderType
}

func (o Options) isExpense(description string) bool {
	for _, c := range o.ExpenseCategories {
		if c == description {
			return true
		}
	}
	return false
}

// ParseExpenseCategories splits a comma-separated category list, dropping
// blanks.
func ParseExpenseCategories(list string) []string {
	var categories []string
	for _, c := range strings.Split(list, ",") {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}
	return categories
}
