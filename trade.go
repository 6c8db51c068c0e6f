package immotax

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Side tells whether a trade acquires or disposes of an asset.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Trade is a single acquisition or disposal of a quantity of an asset
// (a crypto currency, a precious metal, a security held privately...).
type Trade struct {
	Date     Date
	Side     Side
	Asset    string   // Asset is the symbol of the traded asset (e.g. "BTC").
	Quantity Quantity // Quantity is the number of units traded, always positive.
	Amount   Money    // Amount is the total price of the trade, fees excluded.
	Fee      Money    // Fee is paid on top of a buy, and deducted from a sell.
	Memo     string
}

// NewBuy creates a new buy trade.
func NewBuy(day Date, asset string, quantity Quantity, amount Money) Trade {
	return Trade{Date: day, Side: Buy, Asset: asset, Quantity: quantity, Amount: amount}
}

// NewSell creates a new sell trade.
func NewSell(day Date, asset string, quantity Quantity, amount Money) Trade {
	return Trade{Date: day, Side: Sell, Asset: asset, Quantity: quantity, Amount: amount}
}

// WithFee returns a copy of the trade with a fee.
func (t Trade) WithFee(fee Money) Trade {
	t.Fee = fee
	return t
}

// Currency returns the currency of the trade.
func (t Trade) Currency() string {
	if t.Amount.Currency() != "" {
		return t.Amount.Currency()
	}
	return t.Fee.Currency()
}

// Cost returns the acquisition cost of a buy: amount plus fee.
func (t Trade) Cost() Money { return t.Amount.Add(t.Fee) }

// Proceeds returns the net proceeds of a sell: amount minus fee.
func (t Trade) Proceeds() Money { return t.Amount.Sub(t.Fee) }

// UnitPrice returns the price of a single unit, fees excluded.
func (t Trade) UnitPrice() Money {
	if t.Quantity.IsZero() {
		return M(0, t.Currency())
	}
	return t.Amount.Div(t.Quantity)
}

// Validate checks the trade fields and returns all the failures found.
func (t Trade) Validate() error {
	var errs error
	if t.Date.IsZero() {
		errs = errors.Join(errs, errors.New("trade date is missing"))
	}
	if t.Side != Buy && t.Side != Sell {
		errs = errors.Join(errs, fmt.Errorf("trade side must be %q or %q, got %q", Buy, Sell, t.Side))
	}
	if t.Asset == "" {
		errs = errors.Join(errs, errors.New("trade asset is missing"))
	}
	if !t.Quantity.IsPositive() {
		errs = errors.Join(errs, fmt.Errorf("trade quantity must be positive, got %s", t.Quantity))
	}
	if !t.Amount.IsPositive() {
		errs = errors.Join(errs, fmt.Errorf("trade amount must be positive, got %s", t.Amount.Decimal()))
	}
	if t.Fee.IsNegative() {
		errs = errors.Join(errs, fmt.Errorf("trade fee cannot be negative, got %s", t.Fee.Decimal()))
	}
	if t.Amount.Currency() != "" && t.Fee.Currency() != "" && t.Amount.Currency() != t.Fee.Currency() {
		errs = errors.Join(errs, fmt.Errorf("trade fee currency %s does not match amount currency %s", t.Fee.Currency(), t.Amount.Currency()))
	}
	if t.Side == Sell && t.Fee.GreaterThan(t.Amount) {
		errs = errors.Join(errs, fmt.Errorf("sell fee %s exceeds the sale amount %s", t.Fee.Decimal(), t.Amount.Decimal()))
	}
	return errs
}

// MarshalJSON writes the trade as a flat object, amounts sharing a single currency field.
func (t Trade) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("date", t.Date)
	w.Append("side", t.Side)
	w.Append("asset", t.Asset)
	w.Append("quantity", t.Quantity)
	w.Append("amount", t.Amount.Decimal())
	w.Optional("fee", t.Fee.Decimal())
	w.Optional("currency", t.Currency())
	w.Optional("memo", t.Memo)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface for Trade.
func (t *Trade) UnmarshalJSON(data []byte) error {
	// Use a temporary type that has all possible fields.
	var temp struct {
		amountCmd
		Date     Date     `json:"date"`
		Side     Side     `json:"side"`
		Asset    string   `json:"asset"`
		Quantity Quantity `json:"quantity"`
		Fee      Quantity `json:"fee"`
		Memo     string   `json:"memo"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	*t = Trade{
		Date:     temp.Date,
		Side:     temp.Side,
		Asset:    temp.Asset,
		Quantity: temp.Quantity,
		Amount:   temp.Money(),
		Fee:      M(temp.Fee.value, temp.Currency),
		Memo:     temp.Memo,
	}
	return nil
}
