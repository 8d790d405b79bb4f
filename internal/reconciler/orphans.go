package reconciler

import (
	"sort"

	"github.com/shopspring/decimal"

	"settlement-reconciler/internal/models"
)

// Period fees are charged without an order id and settled once per day.
var orphanAmountTypes = map[string]bool{
	"Cost of Advertising":          true,
	"Amazon Business Advisory Fee": true,
}

func isOrphan(row models.SettlementRow) bool {
	return row.OrderID == "" && orphanAmountTypes[row.AmountType]
}

// aggregateOrphans writes one contra voucher per posted date for the period
// fees, closed against the order type's fund. The closing line always sits on
// the credit side, negative when the day's fees net to a refund.
func (e *Engine) aggregateOrphans(rows []models.SettlementRow) {
	var orphans []models.SettlementRow
	for _, row := range rows {
		if isOrphan(row) {
			orphans = append(orphans, row)
		}
	}
	if len(orphans) == 0 {
		return
	}

	sort.SliceStable(orphans, func(i, j int) bool {
		return orphans[i].PostedDate.Before(orphans[j].PostedDate)
	})

	creditors := AccountFor(models.GSTINPrefix27, PurposeCreditors)
	fund := AccountFor(models.GSTINPrefix27, orphanFundPurpose(e.opts.OrderType))

	seen := make(map[string]bool)
	var total decimal.Decimal
	open := false

	closeGroup := func() {
		if !open {
			return
		}
		e.journal = append(e.journal, models.JournalEntry{
			Kind:       models.EntryClosing,
			Account:    fund,
			CostCenter: e.opts.CostCenter,
			Debit:      decimal.Zero,
			Credit:     total.Neg(),
		})
		total = decimal.Zero
		open = false
	}

	for _, row := range orphans {
		date := formatDate(row.PostedDate)
		entry := models.JournalEntry{
			Account:    creditors,
			CostCenter: e.opts.CostCenter,
			Debit:      decimal.Min(row.Amount, decimal.Zero).Neg(),
			Credit:     decimal.Max(row.Amount, decimal.Zero),
			Party:      e.opts.Supplier,
			PartyType:  partyTypeSupplier,
		}

		if seen[date] {
			entry.Kind = models.EntryLine
		} else {
			closeGroup()
			seen[date] = true
			open = true

			entry.Kind = models.EntryContraHeader
			entry.Company = e.opts.Company
			entry.EntryType = entryTypeContra
			entry.PostingDate = date
			entry.Series = e.opts.Series
			entry.ReferenceDate = date
			entry.ReferenceNumber = e.period.Label() + " - " + row.AmountType
			entry.UserRemark = e.period.Label()
			entry.CompanyGSTIN = e.opts.ContraGSTIN
		}

		e.journal = append(e.journal, entry)
		total = total.Add(row.Amount)
		e.summary.OrphanRows++
	}
	closeGroup()
}
