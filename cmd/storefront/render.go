package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

func (sh *shell) printf(format string, args ...interface{}) {
	fmt.Fprintf(sh.out, format, args...)
}

func (sh *shell) table(fn func(w *tabwriter.Writer)) {
	w := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fn(w)
	_ = w.Flush()
}

func (sh *shell) renderProducts(list []storefront.Product) {
	sh.table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK")
		for _, p := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock)
		}
	})
}

func (sh *shell) renderCart(c storefront.Cart) {
	if c.IsEmpty() {
		sh.printf("Your cart is empty\n")
		return
	}
	sh.table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ITEM\tPRODUCT\tQTY\tPRICE\tTOTAL")
		for _, it := range c.Items {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", it.ID, it.Name, it.Quantity, it.PriceAtAdd.StringFixed(2), it.Total.StringFixed(2))
		}
	})
	sh.printf("Subtotal: %s\n", c.Subtotal.StringFixed(2))
	if c.CouponCode != "" {
		sh.printf("Discount (%s): -%s\n", c.CouponCode, c.Discount.StringFixed(2))
	}
	if c.ShippingMethod != "" {
		sh.printf("Shipping (%s): %s\n", c.ShippingMethod, c.Shipping.StringFixed(2))
	}
	sh.printf("Total: %s\n", c.Total.StringFixed(2))
}

func (sh *shell) renderShipping(list []storefront.ShippingMethod) {
	sh.table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tPRICE\tDAYS")
		for _, m := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", m.ID, m.Name, m.Price.StringFixed(2), m.EstimatedDays)
		}
	})
}

func (sh *shell) renderAddresses(list []storefront.Address) {
	if len(list) == 0 {
		sh.printf("No saved addresses\n")
		return
	}
	sh.table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tADDRESS\tDEFAULT")
		for _, a := range list {
			def := ""
			if a.IsDefault {
				def = "yes"
			}
			fmt.Fprintf(w, "%s\t%s, %s %s, %s\t%s\n", a.ID, a.Street, a.City, a.ZipCode, a.Country, def)
		}
	})
}

func (sh *shell) renderOrders(list []storefront.Order) {
	if len(list) == 0 {
		sh.printf("No orders yet\n")
		return
	}
	sh.table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tSTATUS\tPAYMENT\tMETHOD\tTOTAL\tPLACED")
		for _, o := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", o.ID, o.Status, o.PaymentStatus, o.PaymentMethod, o.Total.StringFixed(2), o.CreatedAt.Format("2006-01-02 15:04"))
		}
	})
}

func (sh *shell) renderOrder(o storefront.Order) {
	sh.printf("Order %s\n", o.ID)
	sh.printf("Status: %s, payment %s (%s)\n", o.Status, o.PaymentStatus, o.PaymentMethod)
	sh.printf("Deliver to: %s, %s %s, %s\n", o.Address.Street, o.Address.City, o.Address.ZipCode, o.Address.Country)
	sh.table(func(w *tabwriter.Writer) {
		for _, l := range o.Items {
			fmt.Fprintf(w, "%s\tx%d\t%s\n", l.Name, l.Quantity, l.Price.StringFixed(2))
		}
	})
	sh.printf("Total: %s %s\n", o.Total.StringFixed(2), o.Currency)
}
