package immotax

// lot represents a single acquisition of an asset, used for cost basis calculations.
type lot struct {
	Date     Date
	Quantity Quantity
	Cost     Money // Total cost of the lot (quantity * price + fee)
}

type lots []lot

// lotMatch is the portion of a lot consumed by a sale.
type lotMatch struct {
	Date     Date
	Quantity Quantity
	Cost     Money
}

// quantity returns the total quantity held in the lots.
func (l lots) quantity() Quantity {
	var q Quantity
	for _, current := range l {
		q = q.Add(current.Quantity)
	}
	return q
}

// cost returns the total cost of the lots.
func (l lots) cost() Money {
	var c Money
	for _, current := range l {
		c = c.Add(current.Cost)
	}
	return c
}

// sell consumes 'quantityToSell' from the oldest lots first.
//
// It returns the portions consumed and the lots left. A partially consumed
// lot keeps its acquisition date, and its cost is split pro rata.
// The caller must check that the lots hold enough quantity.
func (l lots) sell(quantityToSell Quantity) ([]lotMatch, lots) {
	var matches []lotMatch
	var remainingLots lots

	for _, currentLot := range l {
		if quantityToSell.IsZero() {
			remainingLots = append(remainingLots, currentLot)
			continue
		}

		if currentLot.Quantity.GreaterThan(quantityToSell) {
			// Partial sale from this lot
			costOfSoldPortion := currentLot.Cost.Mul(quantityToSell).Div(currentLot.Quantity)
			matches = append(matches, lotMatch{Date: currentLot.Date, Quantity: quantityToSell, Cost: costOfSoldPortion})
			remainingLots = append(remainingLots, lot{
				Date:     currentLot.Date,
				Quantity: currentLot.Quantity.Sub(quantityToSell),
				Cost:     currentLot.Cost.Sub(costOfSoldPortion),
			})
			quantityToSell = Quantity{}
		} else {
			// Full sale of this lot
			matches = append(matches, lotMatch(currentLot))
			quantityToSell = quantityToSell.Sub(currentLot.Quantity)
		}
	}
	return matches, remainingLots
}
