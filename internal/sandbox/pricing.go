package sandbox

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

var hundred = decimal.NewFromInt(100)

type stockError struct {
	name  string
	stock int
}

func (e *stockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: %d left", e.name, e.stock)
}

func stockMessage(name string, stock int) string {
	switch stock {
	case 0:
		return fmt.Sprintf("%s is out of stock", name)
	case 1:
		return fmt.Sprintf("Only 1 item left in stock for %s", name)
	default:
		return fmt.Sprintf("Only %d items left in stock for %s", stock, name)
	}
}

// price derives the client view of a cart: line totals, subtotal, coupon discount
// and shipping, with total = subtotal - discount + shipping.
func (s *Server) price(st *CartState) storefront.Cart {
	out := storefront.Cart{
		ID:             st.ID,
		Items:          make([]storefront.CartItem, 0, len(st.Items)),
		Subtotal:       decimal.Zero,
		Discount:       decimal.Zero,
		Shipping:       decimal.Zero,
		ShippingMethod: st.ShippingMethod,
		CouponCode:     st.CouponCode,
	}

	for _, l := range st.Items {
		p, _ := s.catalog.Product(l.ProductID)
		p.ID = l.ProductID
		lineTotal := l.PriceAtAdd.Mul(decimal.NewFromInt(int64(l.Quantity)))
		out.Items = append(out.Items, storefront.CartItem{
			ID:         l.ID,
			Name:       p.Name,
			Quantity:   l.Quantity,
			PriceAtAdd: l.PriceAtAdd,
			Total:      lineTotal,
			Product:    p,
		})
		out.Subtotal = out.Subtotal.Add(lineTotal)
	}

	if st.CouponCode != "" {
		if cp, err := s.catalog.Coupon(st.CouponCode); err == nil {
			out.Discount = out.Subtotal.Mul(cp.PercentOff).Div(hundred).Round(2)
		}
	}
	if len(st.Items) > 0 && st.ShippingMethod != "" {
		if m, ok := s.catalog.ShippingMethod(st.ShippingMethod); ok {
			out.Shipping = m.Price
		}
	}
	out.Total = out.Subtotal.Sub(out.Discount).Add(out.Shipping)
	return out
}
