package cart

import (
	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/money"
)

// Line is one product in a cart view.
type Line struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`

	// UnitPrice is the price the server stored on the line. Priced is false
	// for lines that exist only optimistically or that the server sent
	// without a price; a priced line may still cost zero.
	UnitPrice money.Amount `json:"unitPrice"`
	Priced    bool         `json:"priced,omitempty"`
}

// Totals summarises a cart view.
type Totals struct {
	Items int          `json:"items"`
	Price money.Amount `json:"price"`
}

// PriceBook supplies catalog prices for lines the server has not priced.
type PriceBook interface {
	UnitPrice(productID string) (money.Amount, bool)
}

// linesFromCart converts a server cart into lines, dropping empty ones.
func linesFromCart(c *api.Cart) []Line {
	if c == nil {
		return nil
	}
	lines := make([]Line, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Quantity < 1 {
			continue
		}
		price, priced := item.UnitPrice()
		lines = append(lines, Line{
			ProductID: item.ProductID(),
			Name:      item.DisplayName(),
			Quantity:  item.Quantity,
			UnitPrice: price,
			Priced:    priced,
		})
	}
	return lines
}

func indexOf(lines []Line, productID string) int {
	for i, l := range lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func quantityOf(lines []Line, productID string) int {
	if i := indexOf(lines, productID); i >= 0 {
		return lines[i].Quantity
	}
	return 0
}

// project applies pending mutations, in order, to a copy of local.
func project(local []Line, pending []*Mutation) []Line {
	lines := append([]Line(nil), local...)
	for _, m := range pending {
		i := indexOf(lines, m.ProductID)
		switch m.Kind {
		case KindAdd:
			if i < 0 {
				lines = append(lines, Line{ProductID: m.ProductID, Quantity: 1})
				continue
			}
			lines[i].Quantity++
		case KindRemove:
			if i < 0 {
				continue
			}
			lines[i].Quantity--
			if lines[i].Quantity < 1 {
				lines = append(lines[:i], lines[i+1:]...)
			}
		}
	}
	return lines
}

// totals sums quantities and prices. The server's stored price wins; the
// catalog price covers lines the server has not priced yet.
func totals(lines []Line, prices PriceBook) Totals {
	t := Totals{Price: money.Zero}
	for _, l := range lines {
		t.Items += l.Quantity
		price := l.UnitPrice
		if !l.Priced && prices != nil {
			if p, ok := prices.UnitPrice(l.ProductID); ok {
				price = p
			}
		}
		t.Price = t.Price.Add(price.Times(l.Quantity))
	}
	return t
}
