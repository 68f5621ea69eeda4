// Package orders builds the read-only order view projections.
package orders

import "storefront-client/internal/model"

// SellerOrder aggregates the flat seller feed rows that share an order id.
type SellerOrder struct {
	OrderID    int
	BuyerEmail string
	Status     model.OrderStatus
	Lines      []model.SellerOrderLine
	Subtotal   float64
}

// GroupSellerLines folds flat rows into one aggregate per order id. Every
// input row lands in exactly one group; groups appear in the order their
// first row was seen. The subtotal is the sum of price times quantity over
// the group's rows.
func GroupSellerLines(rows []model.SellerOrderLine) []SellerOrder {
	var groups []SellerOrder
	index := make(map[int]int)

	for _, row := range rows {
		i, ok := index[row.OrderID]
		if !ok {
			i = len(groups)
			index[row.OrderID] = i
			groups = append(groups, SellerOrder{
				OrderID:    row.OrderID,
				BuyerEmail: row.BuyerEmail,
				Status:     row.OrderStatus,
			})
		}
		groups[i].Lines = append(groups[i].Lines, row)
		groups[i].Subtotal += row.Price * float64(row.Quantity)
	}
	return groups
}
