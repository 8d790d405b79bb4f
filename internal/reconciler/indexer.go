package reconciler

import (
	"sort"

	"github.com/shopspring/decimal"

	"settlement-reconciler/internal/models"
)

// OrderIndex is the per-order lookup built before the main pass.
type OrderIndex struct {
	// OrderIDs lists every order once, sorted.
	OrderIDs []string
	// Totals is the sum of amounts across each order's rows.
	Totals map[string]decimal.Decimal
	// LastRow is the position, in statement order, of each order's last row.
	LastRow map[string]int
}

// IndexOrders groups rows by order id. Positions in LastRow refer to the
// slice as given; the sorted copy only drives OrderIDs.
func IndexOrders(rows []models.SettlementRow) *OrderIndex {
	idx := &OrderIndex{
		Totals:  make(map[string]decimal.Decimal),
		LastRow: make(map[string]int),
	}

	positions := make([]int, 0, len(rows))
	for pos, row := range rows {
		if row.OrderID == "" {
			continue
		}
		positions = append(positions, pos)
		idx.LastRow[row.OrderID] = pos
	}

	sorted := make([]int, len(positions))
	copy(sorted, positions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rows[sorted[i]].OrderID < rows[sorted[j]].OrderID
	})

	for _, pos := range sorted {
		row := rows[pos]
		total, seen := idx.Totals[row.OrderID]
		if !seen {
			idx.OrderIDs = append(idx.OrderIDs, row.OrderID)
		}
		idx.Totals[row.OrderID] = total.Add(row.Amount)
	}

	return idx
}

// IsLast reports whether pos holds the final row of orderID.
func (idx *OrderIndex) IsLast(orderID string, pos int) bool {
	last, ok := idx.LastRow[orderID]
	return ok && last == pos
}
